package goSession

import "errors"

var (
	// ErrBackendUnavailable wraps every Redis failure surfaced by the Manager.
	ErrBackendUnavailable = errors.New("session backend unavailable")
	// ErrInvalidUserID is returned for an empty user id.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidToken is returned for an empty session token.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrSessionCorrupt is returned when a stored session hash cannot be decoded.
	ErrSessionCorrupt = errors.New("session corrupt")
	// ErrRedisRequired is returned by Build when no client or client options were supplied.
	ErrRedisRequired = errors.New("redis client required")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrClusterUnsupported is returned by Build for a Redis Cluster client.
	// Session and token keys hash to different slots, so the session
	// scripts cannot run there.
	ErrClusterUnsupported = errors.New("redis cluster is not supported")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("session manager closed")
)
