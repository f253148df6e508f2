package repos

import (
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/temporal"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// AliasRepo owns the alias index rows.
type AliasRepo interface {
	// AssertIdempotent opens an alias unless the identical (org, alias,
	// lang) is already open. Transaction required for the lock.
	AssertIdempotent(dbc dbctx.Context, row *domain.OrgAlias) (bool, *domain.OrgAlias, error)

	// Close ends the (org, alias, lang) assertion. Empty alias closes every
	// open alias of the org (wildcard form). Returns rows closed.
	Close(dbc dbctx.Context, orgID int64, alias, lang string, sourceID int64, comment string) (int64, error)

	ListOpenByOrg(dbc dbctx.Context, orgID int64) ([]*domain.OrgAlias, error)
	ListAsOfByOrg(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error)
	History(dbc dbctx.Context, orgID int64, alias, lang string) ([]*domain.OrgAlias, error)

	// ListOpenStartedAt returns the org's open aliases whose validity began
	// exactly at the given instant (merge re-point detection for split).
	ListOpenStartedAt(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error)
	// ListOpenStartedAfter returns the org's open aliases asserted strictly
	// after the instant (the ambiguous set for split).
	ListOpenStartedAfter(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error)

	GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgAlias, error)
	CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error
	Create(dbc dbctx.Context, rows []*domain.OrgAlias) ([]*domain.OrgAlias, error)

	Now() time.Time
}

type aliasRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store *temporal.Store[domain.OrgAlias]
}

func NewAliasRepo(db *gorm.DB, baseLog *logger.Logger) AliasRepo {
	return &aliasRepo{
		db:    db,
		log:   baseLog.With("repo", "AliasRepo"),
		store: temporal.NewStore[domain.OrgAlias](db, baseLog),
	}
}

func (r *aliasRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *aliasRepo) Now() time.Time { return r.store.Now() }

func aliasKey(orgID int64, alias, lang string) temporal.Key {
	key := temporal.Key{"external_org": orgID}
	if alias != "" && alias != "*" {
		key["alias"] = alias
		key["lang"] = lang
	}
	return key
}

func (r *aliasRepo) AssertIdempotent(dbc dbctx.Context, row *domain.OrgAlias) (bool, *domain.OrgAlias, error) {
	return r.store.AssertIdempotent(dbc, aliasKey(row.OrgID, row.Alias, row.Lang), row)
}

func (r *aliasRepo) Close(dbc dbctx.Context, orgID int64, alias, lang string, sourceID int64, comment string) (int64, error) {
	return r.store.Close(dbc, aliasKey(orgID, alias, lang), sourceID, comment)
}

func (r *aliasRepo) ListOpenByOrg(dbc dbctx.Context, orgID int64) ([]*domain.OrgAlias, error) {
	return r.store.Open(dbc, temporal.Key{"external_org": orgID})
}

func (r *aliasRepo) ListAsOfByOrg(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	return r.store.AsOf(dbc, temporal.Key{"external_org": orgID}, at)
}

func (r *aliasRepo) History(dbc dbctx.Context, orgID int64, alias, lang string) ([]*domain.OrgAlias, error) {
	return r.store.History(dbc, aliasKey(orgID, alias, lang))
}

func (r *aliasRepo) ListOpenStartedAt(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	var rows []*domain.OrgAlias
	err := r.conn(dbc).
		Where("external_org = ? AND valid_end IS NULL AND valid_start = ?", orgID, at).
		Find(&rows).Error
	return rows, err
}

func (r *aliasRepo) ListOpenStartedAfter(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	var rows []*domain.OrgAlias
	err := r.conn(dbc).
		Where("external_org = ? AND valid_end IS NULL AND valid_start > ?", orgID, at).
		Find(&rows).Error
	return rows, err
}

func (r *aliasRepo) GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgAlias, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.OrgAlias
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *aliasRepo) CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error {
	_, err := r.store.CloseScope(dbc, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, sourceID, comment)
	return err
}

func (r *aliasRepo) Create(dbc dbctx.Context, rows []*domain.OrgAlias) ([]*domain.OrgAlias, error) {
	if len(rows) == 0 {
		return []*domain.OrgAlias{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
