package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const mongoDocumentsCollection = "documents"

// mongoRow is the stored shape: _id is the full path.
type mongoRow struct {
	ID        string    `bson:"_id"`
	Parent    string    `bson:"parent"`
	Fields    bson.M    `bson:"fields"`
	Version   int64     `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo is a Store over a single MongoDB collection. Batches run in
// multi-document transactions, which require a replica set.
type Mongo struct {
	client *mongodriver.Client
	docs   *mongodriver.Collection
	poll   time.Duration
	logger *zap.Logger
}

// MongoOptions tunes the Mongo store.
type MongoOptions struct {
	// PollInterval is used by live queries when change streams are not
	// available on the deployment.
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewMongo prepares the documents collection in db.
func NewMongo(ctx context.Context, client *mongodriver.Client, database string, opts MongoOptions) (*Mongo, error) {
	if client == nil {
		return nil, newError(Invalid, "open", "", errors.New("mongo client is required"))
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	m := &Mongo{
		client: client,
		docs:   client.Database(database).Collection(mongoDocumentsCollection),
		poll:   poll,
		logger: logger,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "parent", Value: 1}},
			Options: options.Index().SetName("parent"),
		},
		{
			Keys:    bson.D{{Key: "parent", Value: 1}, {Key: "fields.createdAt", Value: -1}},
			Options: options.Index().SetName("parent_created_desc"),
		},
	}
	if _, err := m.docs.Indexes().CreateMany(ctx, models); err != nil {
		return newError(Unavailable, "ensure indexes", "", err)
	}
	return nil
}

func (m *Mongo) load(ctx context.Context, p Path) (Document, error) {
	var row mongoRow
	err := m.docs.FindOne(ctx, bson.M{"_id": string(p)}).Decode(&row)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return Document{Path: p}, nil
	}
	if err != nil {
		return Document{}, m.classify("get", p, err)
	}
	return row.document(), nil
}

func (r mongoRow) document() Document {
	fields := make(Fields, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = fromBSON(v)
	}
	return Document{Path: Path(r.ID), Fields: fields, Exists: true, Version: r.Version}
}

// fromBSON maps driver types onto the canonical field types.
func fromBSON(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC()
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSON(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	default:
		return v
	}
}

func (m *Mongo) Get(ctx context.Context, p Path) (Document, error) {
	if !p.IsDocument() {
		return Document{}, newError(Invalid, "get", p, errNotDocument)
	}
	return m.load(ctx, p)
}

func (m *Mongo) Set(ctx context.Context, p Path, fields Fields, merge bool) error {
	return m.commit(ctx, "set", []Op{SetOp(p, fields, merge)})
}

func (m *Mongo) Update(ctx context.Context, p Path, fields Fields) error {
	return m.commit(ctx, "update", []Op{UpdateOp(p, fields)})
}

func (m *Mongo) Delete(ctx context.Context, p Path) error {
	return m.commit(ctx, "delete", []Op{DeleteOp(p)})
}

func (m *Mongo) Increment(ctx context.Context, p Path, field string, delta int64) error {
	return m.commit(ctx, "increment", []Op{IncrementOp(p, field, delta)})
}

func (m *Mongo) RunBatch(ctx context.Context, ops []Op) error {
	return m.commit(ctx, "batch", ops)
}

func (m *Mongo) commit(ctx context.Context, op string, ops []Op) error {
	if err := validateOps(op, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return m.classify(op, "", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongodriver.SessionContext) (interface{}, error) {
		changes, err := planBatch(sc, op, ops, m.load)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		for _, c := range changes {
			if err := m.write(sc, op, c, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return m.classify(op, "", err)
}

func (m *Mongo) write(ctx context.Context, op string, c change, now time.Time) error {
	if !c.Exists {
		res, err := m.docs.DeleteOne(ctx, bson.M{"_id": string(c.Path), "version": c.base})
		if err != nil {
			return m.classify(op, c.Path, err)
		}
		if res.DeletedCount == 0 {
			return newError(Conflict, op, c.Path, errors.New("concurrent modification"))
		}
		return nil
	}
	row := mongoRow{
		ID:        string(c.Path),
		Parent:    string(c.Path.Parent()),
		Fields:    bson.M(c.Fields),
		Version:   c.Version,
		UpdatedAt: now,
	}
	if c.created {
		if _, err := m.docs.InsertOne(ctx, row); err != nil {
			return m.classify(op, c.Path, err)
		}
		return nil
	}
	res, err := m.docs.ReplaceOne(ctx, bson.M{"_id": row.ID, "version": c.base}, row)
	if err != nil {
		return m.classify(op, c.Path, err)
	}
	if res.MatchedCount == 0 {
		return newError(Conflict, op, c.Path, errors.New("concurrent modification"))
	}
	return nil
}

// Query pushes filters, order and limit down to MongoDB.
func (m *Mongo) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter := bson.M{"parent": string(q.Collection)}
	for _, f := range q.Filters {
		key, cond := mongoCondition(q.Collection, f)
		if existing, ok := filter[key].(bson.M); ok {
			for k, v := range cond {
				existing[k] = v
			}
			continue
		}
		filter[key] = cond
	}
	opts := options.Find()
	if q.Order != nil {
		key := mongoField(q.Order.Field)
		dir := 1
		if q.Order.Direction == Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: key, Value: dir}, {Key: "_id", Value: 1}})
		if existing, ok := filter[key].(bson.M); ok {
			existing["$exists"] = true
		} else if _, ok := filter[key]; !ok {
			filter[key] = bson.M{"$exists": true}
		}
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.docs.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.classify("query", q.Collection, err)
	}
	defer cur.Close(ctx)

	var rows []mongoRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, m.classify("query", q.Collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func mongoField(field string) string {
	if field == DocumentID {
		return "_id"
	}
	return "fields." + field
}

func mongoCondition(collection Path, f Filter) (string, bson.M) {
	key := mongoField(f.Field)
	value := func(v any) any {
		if f.Field == DocumentID {
			if s, ok := v.(string); ok {
				return string(collection.Doc(s))
			}
		}
		return normalize(v)
	}
	switch f.Op {
	case In:
		values, _ := inValues(f.Value)
		mapped := make(bson.A, len(values))
		for i, v := range values {
			mapped[i] = value(v)
		}
		return key, bson.M{"$in": mapped}
	case Neq:
		return key, bson.M{"$ne": value(f.Value), "$exists": true}
	case Lt:
		return key, bson.M{"$lt": value(f.Value)}
	case Lte:
		return key, bson.M{"$lte": value(f.Value)}
	case Gt:
		return key, bson.M{"$gt": value(f.Value)}
	case Gte:
		return key, bson.M{"$gte": value(f.Value)}
	default:
		return key, bson.M{"$eq": value(f.Value)}
	}
}

// Subscribe re-runs q whenever a change stream event touches the
// collection. Deployments without change streams fall back to polling.
func (m *Mongo) Subscribe(ctx context.Context, q Query) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		if err := q.Validate(); err != nil {
			yield(Snapshot{}, err)
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		changes, poll := m.changeSignals(ctx, q.Collection)
		for snap, err := range watch(ctx, func(ctx context.Context) ([]Document, error) {
			return m.Query(ctx, q)
		}, changes, poll) {
			if !yield(snap, err) {
				return
			}
		}
	}
}

func (m *Mongo) changeSignals(ctx context.Context, collection Path) (<-chan struct{}, time.Duration) {
	pattern := "^" + regexp.QuoteMeta(string(collection)) + "/[^/]+$"
	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": bson.M{"$regex": pattern}}}},
	}
	stream, err := m.docs.Watch(ctx, pipeline)
	if err != nil {
		m.logger.Warn("change stream unavailable, polling instead",
			zap.String("collection", string(collection)),
			zap.Duration("interval", m.poll),
			zap.Error(err))
		return nil, m.poll
	}
	signals := make(chan struct{}, 1)
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			select {
			case signals <- struct{}{}:
			default:
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			m.logger.Warn("change stream ended", zap.String("collection", string(collection)), zap.Error(err))
		}
	}()
	return signals, 0
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) classify(op string, p Path, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case mongodriver.IsDuplicateKeyError(err):
		return newError(Conflict, op, p, err)
	case hasErrorLabel(err, "TransientTransactionError"):
		return newError(Conflict, op, p, err)
	case mongodriver.IsTimeout(err), mongodriver.IsNetworkError(err):
		return newError(Unavailable, op, p, err)
	}
	var cmdErr mongodriver.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Code == 18) {
		return newError(PermissionDenied, op, p, fmt.Errorf("%s: %w", cmdErr.Name, err))
	}
	return newError(Unavailable, op, p, err)
}

func hasErrorLabel(err error, label string) bool {
	var labeled interface{ HasErrorLabel(string) bool }
	return errors.As(err, &labeled) && labeled.HasErrorLabel(label)
}
