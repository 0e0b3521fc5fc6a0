package store

import (
	"context"
	"errors"
	"iter"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is the production Store, backed by Cloud Firestore.
type Firestore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestore wraps an initialized client.
func NewFirestore(client *firestore.Client, logger *zap.Logger) (*Firestore, error) {
	if client == nil {
		return nil, newError(Invalid, "open", "", errors.New("firestore client is required"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Firestore{client: client, logger: logger}, nil
}

func (f *Firestore) Get(ctx context.Context, p Path) (Document, error) {
	if !p.IsDocument() {
		return Document{}, newError(Invalid, "get", p, errNotDocument)
	}
	snap, err := f.client.Doc(string(p)).Get(ctx)
	return f.document(p, snap, err)
}

func (f *Firestore) document(p Path, snap *firestore.DocumentSnapshot, err error) (Document, error) {
	if status.Code(err) == codes.NotFound {
		return Document{Path: p}, nil
	}
	if err != nil {
		return Document{}, f.classify("get", p, err)
	}
	if snap == nil || !snap.Exists() {
		return Document{Path: p}, nil
	}
	return fromSnapshot(snap), nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	return Document{
		Path:    Path(relativePath(snap.Ref)),
		Fields:  normalizeFields(snap.Data()),
		Exists:  true,
		Version: snap.UpdateTime.UnixNano(),
	}
}

// relativePath strips the "projects/.../documents/" prefix.
func relativePath(ref *firestore.DocumentRef) string {
	const marker = "/documents/"
	if i := strings.Index(ref.Path, marker); i >= 0 {
		return ref.Path[i+len(marker):]
	}
	return ref.Path
}

func (f *Firestore) Set(ctx context.Context, p Path, fields Fields, merge bool) error {
	if !p.IsDocument() {
		return newError(Invalid, "set", p, errNotDocument)
	}
	var err error
	if merge {
		_, err = f.client.Doc(string(p)).Set(ctx, toFirestore(fields), firestore.MergeAll)
	} else {
		_, err = f.client.Doc(string(p)).Set(ctx, toFirestore(fields))
	}
	return f.classify("set", p, err)
}

func (f *Firestore) Update(ctx context.Context, p Path, fields Fields) error {
	if !p.IsDocument() {
		return newError(Invalid, "update", p, errNotDocument)
	}
	_, err := f.client.Doc(string(p)).Update(ctx, updates(fields))
	return f.classify("update", p, err)
}

func (f *Firestore) Delete(ctx context.Context, p Path) error {
	if !p.IsDocument() {
		return newError(Invalid, "delete", p, errNotDocument)
	}
	_, err := f.client.Doc(string(p)).Delete(ctx)
	return f.classify("delete", p, err)
}

func (f *Firestore) Increment(ctx context.Context, p Path, field string, delta int64) error {
	return f.Update(ctx, p, Fields{field: Increment(delta)})
}

// RunBatch reads every touched document inside a transaction, plans the
// batch and writes the resulting states. Firestore retries the function
// when a concurrent commit invalidates the reads.
func (f *Firestore) RunBatch(ctx context.Context, ops []Op) error {
	const op = "batch"
	if err := validateOps(op, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changes, err := planBatch(ctx, op, ops, func(_ context.Context, p Path) (Document, error) {
			snap, err := tx.Get(f.client.Doc(string(p)))
			return f.document(p, snap, err)
		})
		if err != nil {
			return err
		}
		for _, c := range changes {
			ref := f.client.Doc(string(c.Path))
			if !c.Exists {
				err = tx.Delete(ref)
			} else {
				err = tx.Set(ref, toFirestore(c.Fields))
			}
			if err != nil {
				return f.classify(op, c.Path, err)
			}
		}
		return nil
	})
	return f.classify(op, "", err)
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	snaps, err := f.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, f.classify("query", q.Collection, err)
	}
	docs := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, fromSnapshot(s))
	}
	return docs, nil
}

func (f *Firestore) query(q Query) firestore.Query {
	coll := f.client.Collection(string(q.Collection))
	fq := coll.Query
	for _, flt := range q.Filters {
		field := flt.Field
		value := flt.Value
		if field == DocumentID {
			field = firestore.DocumentID
			value = f.documentRefs(coll, flt.Value)
		}
		fq = fq.Where(field, string(flt.Op), value)
	}
	if q.Order != nil {
		dir := firestore.Asc
		if q.Order.Direction == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.Order.Field, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (f *Firestore) documentRefs(coll *firestore.CollectionRef, v any) any {
	if id, ok := v.(string); ok {
		return coll.Doc(id)
	}
	values, ok := inValues(v)
	if !ok {
		return v
	}
	refs := make([]*firestore.DocumentRef, 0, len(values))
	for _, id := range values {
		if s, ok := id.(string); ok {
			refs = append(refs, coll.Doc(s))
		}
	}
	return refs
}

// Subscribe maps a Firestore snapshot listener onto the iterator.
func (f *Firestore) Subscribe(ctx context.Context, q Query) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		if err := q.Validate(); err != nil {
			yield(Snapshot{}, err)
			return
		}
		it := f.query(q).Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if errors.Is(err, iterator.Done) || ctx.Err() != nil {
				return
			}
			if err != nil {
				f.logger.Warn("snapshot listener failed", zap.String("collection", string(q.Collection)), zap.Error(err))
				yield(Snapshot{}, f.classify("subscribe", q.Collection, err))
				return
			}
			snaps, err := qs.Documents.GetAll()
			if err != nil {
				yield(Snapshot{}, f.classify("subscribe", q.Collection, err))
				return
			}
			docs := make([]Document, 0, len(snaps))
			for _, s := range snaps {
				docs = append(docs, fromSnapshot(s))
			}
			if !yield(Snapshot{Documents: docs, ReadTime: qs.ReadTime}, nil) {
				return
			}
		}
	}
}

func (f *Firestore) Close(context.Context) error {
	return f.client.Close()
}

func toFirestore(fields Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if inc, ok := v.(Increment); ok {
			out[k] = firestore.Increment(int64(inc))
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func updates(fields Fields) []firestore.Update {
	out := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		if inc, ok := v.(Increment); ok {
			out = append(out, firestore.Update{Path: k, Value: firestore.Increment(int64(inc))})
			continue
		}
		out = append(out, firestore.Update{Path: k, Value: normalize(v)})
	}
	return out
}

func (f *Firestore) classify(op string, p Path, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return newError(NotFound, op, p, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return newError(PermissionDenied, op, p, err)
	case codes.Aborted, codes.AlreadyExists:
		return newError(Conflict, op, p, err)
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return newError(Invalid, op, p, err)
	default:
		return newError(Unavailable, op, p, err)
	}
}
