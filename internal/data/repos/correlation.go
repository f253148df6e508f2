package repos

import (
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/temporal"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// CorrelationRepo owns the foreign-id correlation rows.
type CorrelationRepo interface {
	// LockOpenByTriple returns the open (master, other id, scheme) row
	// under FOR UPDATE, or nil.
	LockOpenByTriple(dbc dbctx.Context, masterID int64, otherID string, schemeID int64) (*domain.OrgCorrelation, error)

	Create(dbc dbctx.Context, rows []*domain.OrgCorrelation) ([]*domain.OrgCorrelation, error)

	// Close ends the triple. Empty otherID closes every open correlation of
	// the master org (wildcard form). Returns rows closed.
	Close(dbc dbctx.Context, masterID int64, otherID string, schemeID int64, sourceID int64, comment string) (int64, error)

	// ResolveOpen finds the currently-open correlation for (scheme, other
	// id) regardless of master. Nil when no correlation exists.
	ResolveOpen(dbc dbctx.Context, schemeID int64, otherID string) (*domain.OrgCorrelation, error)

	// ResolveAsOf is ResolveOpen at a historical instant.
	ResolveAsOf(dbc dbctx.Context, schemeID int64, otherID string, at time.Time) (*domain.OrgCorrelation, error)

	ListOpenByMaster(dbc dbctx.Context, masterID int64) ([]*domain.OrgCorrelation, error)
	ListAsOfByMaster(dbc dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error)
	History(dbc dbctx.Context, masterID int64, otherID string, schemeID int64) ([]*domain.OrgCorrelation, error)

	ListOpenStartedAt(dbc dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error)
	ListOpenStartedAfter(dbc dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error)

	GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgCorrelation, error)
	CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error

	Now() time.Time
}

type correlationRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store *temporal.Store[domain.OrgCorrelation]
}

func NewCorrelationRepo(db *gorm.DB, baseLog *logger.Logger) CorrelationRepo {
	return &correlationRepo{
		db:    db,
		log:   baseLog.With("repo", "CorrelationRepo"),
		store: temporal.NewStore[domain.OrgCorrelation](db, baseLog),
	}
}

func (r *correlationRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *correlationRepo) Now() time.Time { return r.store.Now() }

func correlationKey(masterID int64, otherID string, schemeID int64) temporal.Key {
	key := temporal.Key{"master_id": masterID}
	if otherID != "" && otherID != "*" {
		key["other_id"] = otherID
		key["scheme"] = schemeID
	}
	return key
}

func (r *correlationRepo) LockOpenByTriple(dbc dbctx.Context, masterID int64, otherID string, schemeID int64) (*domain.OrgCorrelation, error) {
	rows, err := r.store.LockOpen(dbc, correlationKey(masterID, otherID, schemeID))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *correlationRepo) Create(dbc dbctx.Context, rows []*domain.OrgCorrelation) ([]*domain.OrgCorrelation, error) {
	if len(rows) == 0 {
		return []*domain.OrgCorrelation{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *correlationRepo) Close(dbc dbctx.Context, masterID int64, otherID string, schemeID int64, sourceID int64, comment string) (int64, error) {
	return r.store.Close(dbc, correlationKey(masterID, otherID, schemeID), sourceID, comment)
}

func (r *correlationRepo) ResolveOpen(dbc dbctx.Context, schemeID int64, otherID string) (*domain.OrgCorrelation, error) {
	if otherID == "" {
		return nil, nil
	}
	rows, err := r.store.Open(dbc, temporal.Key{"scheme": schemeID, "other_id": otherID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *correlationRepo) ResolveAsOf(dbc dbctx.Context, schemeID int64, otherID string, at time.Time) (*domain.OrgCorrelation, error) {
	if otherID == "" {
		return nil, nil
	}
	rows, err := r.store.AsOf(dbc, temporal.Key{"scheme": schemeID, "other_id": otherID}, at)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *correlationRepo) ListOpenByMaster(dbc dbctx.Context, masterID int64) ([]*domain.OrgCorrelation, error) {
	return r.store.Open(dbc, temporal.Key{"master_id": masterID})
}

func (r *correlationRepo) ListAsOfByMaster(dbc dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	return r.store.AsOf(dbc, temporal.Key{"master_id": masterID}, at)
}

func (r *correlationRepo) History(dbc dbctx.Context, masterID int64, otherID string, schemeID int64) ([]*domain.OrgCorrelation, error) {
	return r.store.History(dbc, correlationKey(masterID, otherID, schemeID))
}

func (r *correlationRepo) ListOpenStartedAt(dbc dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	var rows []*domain.OrgCorrelation
	err := r.conn(dbc).
		Where("master_id = ? AND valid_end IS NULL AND valid_start = ?", masterID, at).
		Find(&rows).Error
	return rows, err
}

func (r *correlationRepo) ListOpenStartedAfter(dbc dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	var rows []*domain.OrgCorrelation
	err := r.conn(dbc).
		Where("master_id = ? AND valid_end IS NULL AND valid_start > ?", masterID, at).
		Find(&rows).Error
	return rows, err
}

func (r *correlationRepo) GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgCorrelation, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.OrgCorrelation
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *correlationRepo) CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error {
	_, err := r.store.CloseScope(dbc, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, sourceID, comment)
	return err
}
