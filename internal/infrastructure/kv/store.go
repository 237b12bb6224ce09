// Package kv is the contract of the networked key-value/list store that holds
// room state. It has no transactions: every call is one independent round trip.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("kv: key not found")
	ErrWrongType = errors.New("kv: operation against a key holding the wrong kind of value")
)

type Store interface {
	// Get returns ErrNotFound for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value and replaces any previous expiry with ttl.
	// A zero ttl stores the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys lists every live key matching a glob pattern such as "room:*".
	Keys(ctx context.Context, pattern string) ([]string, error)

	LPush(ctx context.Context, key string, value []byte) error
	// LTrim and LRange take inclusive indexes; negative values count from the tail.
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
