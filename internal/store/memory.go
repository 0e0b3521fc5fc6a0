package store

import (
	"context"
	"iter"
	"sync"
)

// Memory is a process-local Store. It backs tests and single-node
// development setups.
type Memory struct {
	mu     sync.RWMutex
	docs   map[Path]Document
	hub    *hub
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[Path]Document),
		hub:  newHub(),
	}
}

func (m *Memory) Get(ctx context.Context, p Path) (Document, error) {
	if !p.IsDocument() {
		return Document{}, newError(Invalid, "get", p, errNotDocument)
	}
	if err := ctx.Err(); err != nil {
		return Document{}, newError(Unavailable, "get", p, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Document{}, newError(Unavailable, "get", p, errClosed)
	}
	return m.lookup(p), nil
}

func (m *Memory) lookup(p Path) Document {
	d, ok := m.docs[p]
	if !ok {
		return Document{Path: p}
	}
	d.Fields = d.Fields.Clone()
	return d
}

func (m *Memory) Set(ctx context.Context, p Path, fields Fields, merge bool) error {
	return m.commit(ctx, "set", []Op{SetOp(p, fields, merge)})
}

func (m *Memory) Update(ctx context.Context, p Path, fields Fields) error {
	return m.commit(ctx, "update", []Op{UpdateOp(p, fields)})
}

func (m *Memory) Delete(ctx context.Context, p Path) error {
	return m.commit(ctx, "delete", []Op{DeleteOp(p)})
}

func (m *Memory) Increment(ctx context.Context, p Path, field string, delta int64) error {
	return m.commit(ctx, "increment", []Op{IncrementOp(p, field, delta)})
}

func (m *Memory) RunBatch(ctx context.Context, ops []Op) error {
	return m.commit(ctx, "batch", ops)
}

func (m *Memory) commit(ctx context.Context, op string, ops []Op) error {
	if err := validateOps(op, ops); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return newError(Unavailable, op, "", err)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return newError(Unavailable, op, "", errClosed)
	}
	changes, err := planBatch(ctx, op, ops, func(_ context.Context, p Path) (Document, error) {
		return m.lookup(p), nil
	})
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for _, c := range changes {
		if c.Exists {
			m.docs[c.Path] = c.Document
		} else {
			delete(m.docs, c.Path)
		}
	}
	m.mu.Unlock()
	m.hub.publish(touchedCollections(changes)...)
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(Unavailable, "query", q.Collection, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newError(Unavailable, "query", q.Collection, errClosed)
	}
	docs := make([]Document, 0)
	for p := range m.docs {
		if p.Parent() == q.Collection {
			docs = append(docs, m.lookup(p))
		}
	}
	return evaluate(docs, q), nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		if err := q.Validate(); err != nil {
			yield(Snapshot{}, err)
			return
		}
		changes, cancel := m.hub.subscribe(q.Collection)
		defer cancel()
		for snap, err := range watch(ctx, func(ctx context.Context) ([]Document, error) {
			return m.Query(ctx, q)
		}, changes, 0) {
			if !yield(snap, err) {
				return
			}
		}
	}
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
