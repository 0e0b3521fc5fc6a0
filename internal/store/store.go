// Package store is the document persistence layer behind every social graph
// operation. Documents live at slash separated paths ("users/u1/following/u2")
// and all multi-document mutations go through RunBatch so they commit
// all-or-nothing.
package store

import (
	"context"
	"iter"
	"time"
)

// MaxBatchSize is the largest number of operations a single RunBatch call may
// carry. Callers that fan out over many documents split their writes into
// chunks of this size.
const MaxBatchSize = 500

// Store is implemented by every backend (Firestore, MongoDB, SQL, memory).
type Store interface {
	// Get returns the document at p. A missing document is not an error:
	// the returned Document has Exists == false.
	Get(ctx context.Context, p Path) (Document, error)
	// Set writes fields at p. With merge the fields are merged into the
	// existing document, otherwise the document is replaced.
	Set(ctx context.Context, p Path, fields Fields, merge bool) error
	// Update modifies fields of an existing document and fails with
	// NotFound when p does not exist.
	Update(ctx context.Context, p Path, fields Fields) error
	// Delete removes p. Deleting a missing document succeeds.
	Delete(ctx context.Context, p Path) error
	// Increment atomically adds delta to a numeric field of an existing document.
	Increment(ctx context.Context, p Path, field string, delta int64) error
	// RunBatch commits ops in order as one atomic unit.
	RunBatch(ctx context.Context, ops []Op) error
	// Query returns the documents of a collection that match q.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Subscribe streams the result set of q: first the current state, then
	// one snapshot per change. The sequence ends when ctx is cancelled or the
	// consumer stops ranging; ranging over it again starts a new subscription.
	Subscribe(ctx context.Context, q Query) iter.Seq2[Snapshot, error]
	// Close releases the backend's connections.
	Close(ctx context.Context) error
}

// Snapshot is one observation of a live query.
type Snapshot struct {
	Documents []Document
	ReadTime  time.Time
}

// OpKind enumerates batch operation kinds.
type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
	// OpRequireExists aborts the batch with Conflict when the path is missing.
	OpRequireExists
	// OpRequireAbsent aborts the batch with Conflict when the path exists.
	OpRequireAbsent
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpRequireExists:
		return "require-exists"
	case OpRequireAbsent:
		return "require-absent"
	default:
		return "unknown"
	}
}

// Op is a single entry of a batch.
type Op struct {
	Kind   OpKind
	Path   Path
	Fields Fields
	Merge  bool
}

// SetOp writes fields at p, merging when merge is true.
func SetOp(p Path, fields Fields, merge bool) Op {
	return Op{Kind: OpSet, Path: p, Fields: fields, Merge: merge}
}

// UpdateOp modifies fields of the existing document at p.
func UpdateOp(p Path, fields Fields) Op {
	return Op{Kind: OpUpdate, Path: p, Fields: fields}
}

// IncrementOp adds delta to field of the existing document at p.
func IncrementOp(p Path, field string, delta int64) Op {
	return UpdateOp(p, Fields{field: Increment(delta)})
}

// DeleteOp removes the document at p.
func DeleteOp(p Path) Op {
	return Op{Kind: OpDelete, Path: p}
}

// RequireExists guards a batch on the presence of p.
func RequireExists(p Path) Op {
	return Op{Kind: OpRequireExists, Path: p}
}

// RequireAbsent guards a batch on the absence of p.
func RequireAbsent(p Path) Op {
	return Op{Kind: OpRequireAbsent, Path: p}
}

func validateOps(op string, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxBatchSize {
		return newError(Invalid, op, "", errBatchTooLarge)
	}
	for _, o := range ops {
		if !o.Path.IsDocument() {
			return newError(Invalid, op, o.Path, errNotDocument)
		}
	}
	return nil
}
