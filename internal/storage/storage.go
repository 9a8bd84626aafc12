package storage

import "context"

// KV is the persistent key-value substrate the state store writes through.
// It mirrors the surface of browser local storage: durable string values
// under well-known keys, whole-value reads and writes, no partial updates.
//
// Implementations must treat a missing key as (value "", ok false, nil err);
// callers rely on "absent key means empty collection".
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
