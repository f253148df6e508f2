// Package temporal implements the shared versioned-fact pattern every
// mastered attribute table builds on: a fact is true from valid_start to
// valid_end, asserted by a source, and at most one row per semantic key may
// be open (valid_end IS NULL) at any instant. History is append-only;
// closing a fact sets valid_end, never deletes the row.
package temporal

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// ErrOpenFactExists is returned by Assert when an open row already exists
// for the semantic key. Callers must supersede explicitly rather than
// blindly assert. data/aggregates maps this to CodeConflict.
var ErrOpenFactExists = errors.New("open fact already exists for key")

// ErrTxRequired is returned by Supersede when called outside a transaction.
var ErrTxRequired = errors.New("supersede requires a transaction")

// Key identifies a semantic key as column -> value equality predicates.
// Omitting a column widens the key (wildcard close-all forms).
type Key map[string]any

// Scope is an arbitrary query refinement for keys equality cannot express,
// e.g. edges touching an org on either end.
type Scope func(*gorm.DB) *gorm.DB

// Store is the generic temporal fact store for one mastered table T.
type Store[T any] struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewStore[T any](db *gorm.DB, baseLog *logger.Logger) *Store[T] {
	return &Store[T]{db: db, log: baseLog.With("store", "temporal"), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the store clock. Test hook.
func (s *Store[T]) WithClock(now func() time.Time) *Store[T] {
	s.now = now
	return s
}

func (s *Store[T]) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = s.db
	}
	return t.WithContext(dbc.Ctx)
}

func (s *Store[T]) keyed(db *gorm.DB, key Key) *gorm.DB {
	for col, val := range key {
		db = db.Where(col+" = ?", val)
	}
	return db
}

// Open returns the open rows for the key without locking. A fully
// constrained key yields at most one row.
func (s *Store[T]) Open(dbc dbctx.Context, key Key) ([]*T, error) {
	var rows []*T
	q := s.keyed(s.conn(dbc).Model(new(T)), key).Where("valid_end IS NULL")
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LockOpen returns the open rows for the key under FOR UPDATE. Writers use
// this inside a transaction to serialize per semantic key.
func (s *Store[T]) LockOpen(dbc dbctx.Context, key Key) ([]*T, error) {
	var rows []*T
	q := s.keyed(s.conn(dbc).Model(new(T)), key).
		Where("valid_end IS NULL").
		Clauses(clause.Locking{Strength: "UPDATE"})
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Assert opens a new fact row. Fails with ErrOpenFactExists when the key
// already has an open row; the partial unique index backstops concurrent
// asserts that race past the lock (23505 surfaces as a conflict upstream).
func (s *Store[T]) Assert(dbc dbctx.Context, key Key, row *T) error {
	open, err := s.LockOpen(dbc, key)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return ErrOpenFactExists
	}
	return s.conn(dbc).Create(row).Error
}

// AssertIdempotent opens a new fact row unless an identical open row already
// exists, in which case it succeeds silently and reports the existing row.
// The existing row's provenance is not altered.
func (s *Store[T]) AssertIdempotent(dbc dbctx.Context, key Key, row *T) (bool, *T, error) {
	open, err := s.LockOpen(dbc, key)
	if err != nil {
		return false, nil, err
	}
	if len(open) > 0 {
		return false, open[0], nil
	}
	if err := s.conn(dbc).Create(row).Error; err != nil {
		return false, nil, err
	}
	return true, row, nil
}

// Close ends the validity of the open rows for the key: valid_end = now,
// source overwritten, comment overwritten only when given. Closing a key
// with nothing open is a silent no-op. Returns the number of rows closed.
func (s *Store[T]) Close(dbc dbctx.Context, key Key, sourceID int64, comment string) (int64, error) {
	return s.CloseScope(dbc, func(db *gorm.DB) *gorm.DB { return s.keyed(db, key) }, sourceID, comment)
}

// CloseScope is Close over an arbitrary scope.
func (s *Store[T]) CloseScope(dbc dbctx.Context, scope Scope, sourceID int64, comment string) (int64, error) {
	updates := map[string]any{
		"valid_end": s.now(),
		"source":    sourceID,
	}
	if comment != "" {
		updates["source_comment"] = comment
	}
	res := scope(s.conn(dbc).Model(new(T))).
		Where("valid_end IS NULL").
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Supersede atomically closes the current open row for the key and asserts
// the replacement. It must run inside a transaction so no observer sees zero
// or two open rows for the key.
func (s *Store[T]) Supersede(dbc dbctx.Context, key Key, sourceID int64, comment string, row *T) error {
	if dbc.Tx == nil {
		return ErrTxRequired
	}
	if _, err := s.LockOpen(dbc, key); err != nil {
		return err
	}
	if _, err := s.Close(dbc, key, sourceID, comment); err != nil {
		return err
	}
	return s.conn(dbc).Create(row).Error
}

// AsOf returns the rows valid at the given instant. The validity window is
// half-open, so a row asserted and retracted at the same instant
// (valid_start == valid_end) is never visible.
func (s *Store[T]) AsOf(dbc dbctx.Context, key Key, at time.Time) ([]*T, error) {
	var rows []*T
	q := s.keyed(s.conn(dbc).Model(new(T)), key).
		Where("valid_start <= ?", at).
		Where("valid_end IS NULL OR valid_end > ?", at)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// History returns every row ever asserted for the key, oldest first.
func (s *Store[T]) History(dbc dbctx.Context, key Key) ([]*T, error) {
	var rows []*T
	q := s.keyed(s.conn(dbc).Model(new(T)), key).Order("valid_start ASC, id ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Now exposes the store clock so callers stamp rows consistently with the
// instants Close writes.
func (s *Store[T]) Now() time.Time { return s.now() }
