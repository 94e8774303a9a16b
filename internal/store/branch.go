package store

import (
	"context"
	"sort"
)

// Branch buffers writes on top of a Backend. Reads see the buffered writes
// first and fall through to the parent. Nothing reaches the parent until
// Commit, which applies the whole buffer as one batch.
type Branch struct {
	parent  Backend
	writes  map[string][]byte
	deleted map[string]bool
}

func NewBranch(parent Backend) *Branch {
	return &Branch{
		parent:  parent,
		writes:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (b *Branch) Get(ctx context.Context, key string) ([]byte, error) {
	if b.deleted[key] {
		return nil, ErrNotFound
	}
	if v, ok := b.writes[key]; ok {
		return append([]byte(nil), v...), nil
	}
	return b.parent.Get(ctx, key)
}

func (b *Branch) Set(_ context.Context, key string, value []byte) error {
	delete(b.deleted, key)
	b.writes[key] = append([]byte(nil), value...)
	return nil
}

func (b *Branch) Delete(_ context.Context, key string) error {
	delete(b.writes, key)
	b.deleted[key] = true
	return nil
}

// Ops returns the buffered writes in key order.
func (b *Branch) Ops() []Op {
	ops := make([]Op, 0, len(b.writes)+len(b.deleted))
	for k, v := range b.writes {
		ops = append(ops, Op{Kind: OpSet, Key: k, Value: v})
	}
	for k := range b.deleted {
		ops = append(ops, Op{Kind: OpDelete, Key: k})
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Key < ops[j].Key })
	return ops
}

// Commit applies the buffered writes to the parent and resets the branch.
func (b *Branch) Commit(ctx context.Context) error {
	ops := b.Ops()
	if len(ops) == 0 {
		return nil
	}
	if err := b.parent.Apply(ctx, ops); err != nil {
		return err
	}
	b.Discard()
	return nil
}

// Discard drops every buffered write.
func (b *Branch) Discard() {
	b.writes = make(map[string][]byte)
	b.deleted = make(map[string]bool)
}
