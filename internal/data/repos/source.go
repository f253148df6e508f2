package repos

import (
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// SourceRepo reads the controlled list of data sources. Sources are
// reference data: created during seeding, never updated or deleted.
type SourceRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Source) ([]*domain.Source, error)
	GetByID(dbc dbctx.Context, id int64) (*domain.Source, error)
	GetByName(dbc dbctx.Context, name string) (*domain.Source, error)
	List(dbc dbctx.Context) ([]*domain.Source, error)
}

type sourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return &sourceRepo{db: db, log: baseLog.With("repo", "SourceRepo")}
}

func (r *sourceRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *sourceRepo) Create(dbc dbctx.Context, rows []*domain.Source) ([]*domain.Source, error) {
	if len(rows) == 0 {
		return []*domain.Source{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sourceRepo) GetByID(dbc dbctx.Context, id int64) (*domain.Source, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.Source
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *sourceRepo) GetByName(dbc dbctx.Context, name string) (*domain.Source, error) {
	if name == "" {
		return nil, nil
	}
	var row domain.Source
	if err := r.conn(dbc).Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *sourceRepo) List(dbc dbctx.Context) ([]*domain.Source, error) {
	var rows []*domain.Source
	if err := r.conn(dbc).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
