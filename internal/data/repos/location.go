package repos

import (
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/temporal"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// LocationRepo owns the org-to-postcode link rows.
type LocationRepo interface {
	AssertIdempotent(dbc dbctx.Context, row *domain.OrgLocation) (bool, *domain.OrgLocation, error)

	// Close ends the (org, postcode) link. Zero postcodeID closes every
	// open location of the org (wildcard form). Returns rows closed.
	Close(dbc dbctx.Context, orgID, postcodeID int64, sourceID int64, comment string) (int64, error)

	ListOpenByOrg(dbc dbctx.Context, orgID int64) ([]*domain.OrgLocation, error)
	ListAsOfByOrg(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error)

	ListOpenStartedAt(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error)
	ListOpenStartedAfter(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error)

	GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgLocation, error)
	CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error
	Create(dbc dbctx.Context, rows []*domain.OrgLocation) ([]*domain.OrgLocation, error)

	Now() time.Time
}

type locationRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store *temporal.Store[domain.OrgLocation]
}

func NewLocationRepo(db *gorm.DB, baseLog *logger.Logger) LocationRepo {
	return &locationRepo{
		db:    db,
		log:   baseLog.With("repo", "LocationRepo"),
		store: temporal.NewStore[domain.OrgLocation](db, baseLog),
	}
}

func (r *locationRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *locationRepo) Now() time.Time { return r.store.Now() }

func locationKey(orgID, postcodeID int64) temporal.Key {
	key := temporal.Key{"external_org": orgID}
	if postcodeID != 0 {
		key["postcode"] = postcodeID
	}
	return key
}

func (r *locationRepo) AssertIdempotent(dbc dbctx.Context, row *domain.OrgLocation) (bool, *domain.OrgLocation, error) {
	return r.store.AssertIdempotent(dbc, locationKey(row.OrgID, row.PostcodeID), row)
}

func (r *locationRepo) Close(dbc dbctx.Context, orgID, postcodeID int64, sourceID int64, comment string) (int64, error) {
	return r.store.Close(dbc, locationKey(orgID, postcodeID), sourceID, comment)
}

func (r *locationRepo) ListOpenByOrg(dbc dbctx.Context, orgID int64) ([]*domain.OrgLocation, error) {
	return r.store.Open(dbc, temporal.Key{"external_org": orgID})
}

func (r *locationRepo) ListAsOfByOrg(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	return r.store.AsOf(dbc, temporal.Key{"external_org": orgID}, at)
}

func (r *locationRepo) ListOpenStartedAt(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	var rows []*domain.OrgLocation
	err := r.conn(dbc).
		Where("external_org = ? AND valid_end IS NULL AND valid_start = ?", orgID, at).
		Find(&rows).Error
	return rows, err
}

func (r *locationRepo) ListOpenStartedAfter(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	var rows []*domain.OrgLocation
	err := r.conn(dbc).
		Where("external_org = ? AND valid_end IS NULL AND valid_start > ?", orgID, at).
		Find(&rows).Error
	return rows, err
}

func (r *locationRepo) GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgLocation, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.OrgLocation
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *locationRepo) CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error {
	_, err := r.store.CloseScope(dbc, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, sourceID, comment)
	return err
}

func (r *locationRepo) Create(dbc dbctx.Context, rows []*domain.OrgLocation) ([]*domain.OrgLocation, error) {
	if len(rows) == 0 {
		return []*domain.OrgLocation{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
