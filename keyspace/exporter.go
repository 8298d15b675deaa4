package keyspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPattern   = "*"
	DefaultScanCount = 1000
)

// ExportOptions selects which keys an [Exporter] visits.
type ExportOptions struct {
	Pattern   string
	ScanCount int64
}

// Exporter dumps every matching key to a single JSON object.
type Exporter struct {
	redis   redis.Cmdable
	decoder *Decoder
	opts    ExportOptions
}

// NewExporter creates an [Exporter]; zero options fall back to "*" and a
// SCAN batch of 1000.
func NewExporter(client redis.Cmdable, opts ExportOptions) *Exporter {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = DefaultScanCount
	}
	return &Exporter{
		redis:   client,
		decoder: NewDecoder(client),
		opts:    opts,
	}
}

// Snapshot walks the keyspace with SCAN and decodes each key once.
// This is an O(n) admin operation and must not be used in request hot paths.
func (e *Exporter) Snapshot(ctx context.Context) (map[string]Value, error) {
	out := make(map[string]Value)
	var cursor uint64

	for {
		keys, next, err := e.redis.Scan(ctx, cursor, e.opts.Pattern, e.opts.ScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		for _, key := range keys {
			if _, seen := out[key]; seen {
				continue
			}
			v, err := e.decoder.Decode(ctx, key)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

// Export writes the snapshot as an indented JSON object and returns the
// number of keys written.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	snapshot, err := e.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if err := writeSnapshot(w, snapshot); err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

// ExportFile writes the export to path, replacing any existing file.
// The snapshot is taken before anything touches the disk and lands through
// a rename, so a failed export leaves the previous file intact.
func (e *Exporter) ExportFile(ctx context.Context, path string) (int, error) {
	snapshot, err := e.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	err = writeSnapshot(tmp, snapshot)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close export file: %w", closeErr)
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("replace export file: %w", err)
	}
	return len(snapshot), nil
}

func writeSnapshot(w io.Writer, snapshot map[string]Value) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
