package keyspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrBackend wraps Redis failures surfaced by [Decoder] and [Exporter].
var ErrBackend = errors.New("keyspace backend unavailable")

// Decoder reads a key according to the type Redis reports for it.
type Decoder struct {
	redis redis.Cmdable
}

// NewDecoder creates a [Decoder] over the given client.
func NewDecoder(client redis.Cmdable) *Decoder {
	return &Decoder{redis: client}
}

// Decode returns the fully materialized value stored at key.
//
// A key that disappears between TYPE and the read decodes as
// Unsupported{Type: "none"}, the same as a key that never existed.
//
//	Performance: 2 Redis round-trips (TYPE + one read).
func (d *Decoder) Decode(ctx context.Context, key string) (Value, error) {
	keyType, err := d.redis.Type(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	switch keyType {
	case "string":
		v, err := d.redis.Get(ctx, key).Result()
		if err != nil {
			return vanished(err)
		}
		return String(v), nil

	case "hash":
		v, err := d.redis.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		if len(v) == 0 {
			return Unsupported{Type: "none"}, nil
		}
		return Hash(v), nil

	case "list":
		v, err := d.redis.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		return append(List{}, v...), nil

	case "set":
		v, err := d.redis.SMembers(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		return newSet(v), nil

	case "zset":
		v, err := d.redis.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		return append(SortedSet{}, v...), nil

	default:
		return Unsupported{Type: keyType}, nil
	}
}

func vanished(err error) (Value, error) {
	if errors.Is(err, redis.Nil) {
		return Unsupported{Type: "none"}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrBackend, err)
}
