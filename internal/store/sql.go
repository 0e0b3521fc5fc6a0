package store

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow is the relational shape of a document: the full path as key,
// the parent collection for listing, and the fields as JSON text.
type documentRow struct {
	Path      string `gorm:"primaryKey;size:768"`
	Parent    string `gorm:"size:768;not null;index"`
	Data      string `gorm:"type:text;not null"`
	Version   int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// SQL is a Store over any gorm dialect (PostgreSQL, SQLite).
type SQL struct {
	db     *gorm.DB
	hub    *hub
	poll   time.Duration
	logger *zap.Logger
}

// SQLOptions tunes the SQL store.
type SQLOptions struct {
	// PollInterval makes live queries re-read periodically so writes from
	// other processes are observed. Zero relies on in-process signals only.
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewSQL migrates the documents table and returns the store.
func NewSQL(db *gorm.DB, opts SQLOptions) (*SQL, error) {
	if db == nil {
		return nil, newError(Invalid, "open", "", errors.New("database is required"))
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, newError(Unavailable, "migrate", "", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQL{db: db, hub: newHub(), poll: opts.PollInterval, logger: logger}, nil
}

func (s *SQL) load(ctx context.Context, tx *gorm.DB, p Path) (Document, error) {
	var row documentRow
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("path = ?", string(p)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{Path: p}, nil
	}
	if err != nil {
		return Document{}, s.classify("get", p, err)
	}
	return row.document()
}

func (r documentRow) document() (Document, error) {
	fields, err := decodeFields([]byte(r.Data))
	if err != nil {
		return Document{}, newError(Invalid, "decode", Path(r.Path), err)
	}
	return Document{Path: Path(r.Path), Fields: fields, Exists: true, Version: r.Version}, nil
}

func (s *SQL) Get(ctx context.Context, p Path) (Document, error) {
	if !p.IsDocument() {
		return Document{}, newError(Invalid, "get", p, errNotDocument)
	}
	return s.load(ctx, s.db, p)
}

func (s *SQL) Set(ctx context.Context, p Path, fields Fields, merge bool) error {
	return s.commit(ctx, "set", []Op{SetOp(p, fields, merge)})
}

func (s *SQL) Update(ctx context.Context, p Path, fields Fields) error {
	return s.commit(ctx, "update", []Op{UpdateOp(p, fields)})
}

func (s *SQL) Delete(ctx context.Context, p Path) error {
	return s.commit(ctx, "delete", []Op{DeleteOp(p)})
}

func (s *SQL) Increment(ctx context.Context, p Path, field string, delta int64) error {
	return s.commit(ctx, "increment", []Op{IncrementOp(p, field, delta)})
}

func (s *SQL) RunBatch(ctx context.Context, ops []Op) error {
	return s.commit(ctx, "batch", ops)
}

// commit plans the batch against locked rows and writes the result in the
// same transaction. Inserts collide on the primary key and updates carry the
// loaded version, so a concurrent commit surfaces as Conflict.
func (s *SQL) commit(ctx context.Context, op string, ops []Op) error {
	if err := validateOps(op, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	var changes []change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		planned, err := planBatch(ctx, op, ops, func(ctx context.Context, p Path) (Document, error) {
			return s.load(ctx, tx, p)
		})
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, c := range planned {
			if err := s.write(tx, op, c, now); err != nil {
				return err
			}
		}
		changes = planned
		return nil
	})
	if err != nil {
		return s.classify(op, "", err)
	}
	s.hub.publish(touchedCollections(changes)...)
	return nil
}

func (s *SQL) write(tx *gorm.DB, op string, c change, now time.Time) error {
	if !c.Exists {
		res := tx.Where("path = ? AND version = ?", string(c.Path), c.base).Delete(&documentRow{})
		if res.Error != nil {
			return s.classify(op, c.Path, res.Error)
		}
		if res.RowsAffected == 0 {
			return newError(Conflict, op, c.Path, errors.New("concurrent modification"))
		}
		return nil
	}
	data, err := encodeFields(c.Fields)
	if err != nil {
		return newError(Invalid, op, c.Path, err)
	}
	row := documentRow{
		Path:      string(c.Path),
		Parent:    string(c.Path.Parent()),
		Data:      string(data),
		Version:   c.Version,
		UpdatedAt: now,
	}
	if c.created {
		if err := tx.Create(&row).Error; err != nil {
			return s.classify(op, c.Path, err)
		}
		return nil
	}
	res := tx.Model(&documentRow{}).
		Where("path = ? AND version = ?", row.Path, c.base).
		Updates(map[string]any{"data": row.Data, "version": row.Version, "updated_at": now})
	if res.Error != nil {
		return s.classify(op, c.Path, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(Conflict, op, c.Path, errors.New("concurrent modification"))
	}
	return nil
}

// Query lists the collection from the database and applies filters, order
// and limit to the decoded documents.
func (s *SQL) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var rows []documentRow
	if err := s.db.WithContext(ctx).Where("parent = ?", string(q.Collection)).Find(&rows).Error; err != nil {
		return nil, s.classify("query", q.Collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			s.logger.Warn("skipping undecodable document", zap.String("path", r.Path), zap.Error(err))
			continue
		}
		docs = append(docs, d)
	}
	return evaluate(docs, q), nil
}

func (s *SQL) Subscribe(ctx context.Context, q Query) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		if err := q.Validate(); err != nil {
			yield(Snapshot{}, err)
			return
		}
		changes, cancel := s.hub.subscribe(q.Collection)
		defer cancel()
		for snap, err := range watch(ctx, func(ctx context.Context) ([]Document, error) {
			return s.Query(ctx, q)
		}, changes, s.poll) {
			if !yield(snap, err) {
				return
			}
		}
	}
}

func (s *SQL) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return newError(Unavailable, "close", "", err)
	}
	return sqlDB.Close()
}

func (s *SQL) classify(op string, p Path, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return newError(Conflict, op, p, err)
	}
	if errors.Is(err, gorm.ErrInvalidData) || errors.Is(err, gorm.ErrInvalidValue) {
		return newError(Invalid, op, p, err)
	}
	return newError(Unavailable, op, p, err)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
