package repos

import (
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/temporal"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// OrgRepo owns the Entity Master version rows. An org is a lineage of
// version rows sharing OrgID; at most one version is open at a time.
type OrgRepo interface {
	// CreateLineage inserts the first version row of a new org and stamps
	// its OrgID from the allocated row id. Transaction required.
	CreateLineage(dbc dbctx.Context, row *domain.ExternalOrg) (*domain.ExternalOrg, error)

	OpenByOrgID(dbc dbctx.Context, orgID int64) (*domain.ExternalOrg, error)
	LockOpenByOrgID(dbc dbctx.Context, orgID int64) (*domain.ExternalOrg, error)
	AsOfByOrgID(dbc dbctx.Context, orgID int64, at time.Time) (*domain.ExternalOrg, error)
	History(dbc dbctx.Context, orgID int64) ([]*domain.ExternalOrg, error)

	// Supersede closes the open version and opens the replacement row
	// (same OrgID) in one step. Transaction required.
	Supersede(dbc dbctx.Context, orgID int64, sourceID int64, comment string, row *domain.ExternalOrg) error

	// Close ends the open version without replacement (dissolution).
	Close(dbc dbctx.Context, orgID int64, sourceID int64, comment string) (int64, error)

	Now() time.Time
}

type orgRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store *temporal.Store[domain.ExternalOrg]
}

func NewOrgRepo(db *gorm.DB, baseLog *logger.Logger) OrgRepo {
	return &orgRepo{
		db:    db,
		log:   baseLog.With("repo", "OrgRepo"),
		store: temporal.NewStore[domain.ExternalOrg](db, baseLog),
	}
}

func (r *orgRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *orgRepo) Now() time.Time { return r.store.Now() }

func (r *orgRepo) CreateLineage(dbc dbctx.Context, row *domain.ExternalOrg) (*domain.ExternalOrg, error) {
	if dbc.Tx == nil {
		return nil, temporal.ErrTxRequired
	}
	if err := r.conn(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	if row.OrgID == 0 {
		row.OrgID = row.ID
		if err := r.conn(dbc).Model(&domain.ExternalOrg{}).
			Where("id = ?", row.ID).
			Update("org_id", row.OrgID).Error; err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (r *orgRepo) OpenByOrgID(dbc dbctx.Context, orgID int64) (*domain.ExternalOrg, error) {
	rows, err := r.store.Open(dbc, temporal.Key{"org_id": orgID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *orgRepo) LockOpenByOrgID(dbc dbctx.Context, orgID int64) (*domain.ExternalOrg, error) {
	rows, err := r.store.LockOpen(dbc, temporal.Key{"org_id": orgID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *orgRepo) AsOfByOrgID(dbc dbctx.Context, orgID int64, at time.Time) (*domain.ExternalOrg, error) {
	rows, err := r.store.AsOf(dbc, temporal.Key{"org_id": orgID}, at)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *orgRepo) History(dbc dbctx.Context, orgID int64) ([]*domain.ExternalOrg, error) {
	return r.store.History(dbc, temporal.Key{"org_id": orgID})
}

func (r *orgRepo) Supersede(dbc dbctx.Context, orgID int64, sourceID int64, comment string, row *domain.ExternalOrg) error {
	row.OrgID = orgID
	row.ID = 0
	return r.store.Supersede(dbc, temporal.Key{"org_id": orgID}, sourceID, comment, row)
}

func (r *orgRepo) Close(dbc dbctx.Context, orgID int64, sourceID int64, comment string) (int64, error) {
	return r.store.Close(dbc, temporal.Key{"org_id": orgID}, sourceID, comment)
}
