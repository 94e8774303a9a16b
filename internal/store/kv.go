package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("store: key not found")

// KV is the key/value view handed to a single transaction.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op is one write in an atomic batch.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// Backend is a durable KV that can apply a batch of writes atomically.
type Backend interface {
	KV
	Apply(ctx context.Context, ops []Op) error
	Close() error
}
