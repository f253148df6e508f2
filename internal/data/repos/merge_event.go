package repos

import (
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// MergeEventRepo is the append-only merge audit trail.
type MergeEventRepo interface {
	Create(dbc dbctx.Context, rows []*domain.MergeEvent) ([]*domain.MergeEvent, error)

	// LatestByWinner returns the most recent merge into the org, or nil.
	LatestByWinner(dbc dbctx.Context, winnerID int64) (*domain.MergeEvent, error)

	ListByOrg(dbc dbctx.Context, orgID int64) ([]*domain.MergeEvent, error)
}

type mergeEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMergeEventRepo(db *gorm.DB, baseLog *logger.Logger) MergeEventRepo {
	return &mergeEventRepo{db: db, log: baseLog.With("repo", "MergeEventRepo")}
}

func (r *mergeEventRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *mergeEventRepo) Create(dbc dbctx.Context, rows []*domain.MergeEvent) ([]*domain.MergeEvent, error) {
	if len(rows) == 0 {
		return []*domain.MergeEvent{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *mergeEventRepo) LatestByWinner(dbc dbctx.Context, winnerID int64) (*domain.MergeEvent, error) {
	if winnerID == 0 {
		return nil, nil
	}
	var row domain.MergeEvent
	if err := r.conn(dbc).
		Where("winner_id = ?", winnerID).
		Order("merged_at DESC, id DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *mergeEventRepo) ListByOrg(dbc dbctx.Context, orgID int64) ([]*domain.MergeEvent, error) {
	var rows []*domain.MergeEvent
	err := r.conn(dbc).
		Where("winner_id = ? OR loser_id = ?", orgID, orgID).
		Order("merged_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
