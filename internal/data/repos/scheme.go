package repos

import (
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// SchemeRepo reads the controlled vocabulary of external identifier schemes.
type SchemeRepo interface {
	Create(dbc dbctx.Context, rows []*domain.IDScheme) ([]*domain.IDScheme, error)
	GetByID(dbc dbctx.Context, id int64) (*domain.IDScheme, error)
	GetByName(dbc dbctx.Context, name string) (*domain.IDScheme, error)
	List(dbc dbctx.Context) ([]*domain.IDScheme, error)
}

type schemeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchemeRepo(db *gorm.DB, baseLog *logger.Logger) SchemeRepo {
	return &schemeRepo{db: db, log: baseLog.With("repo", "SchemeRepo")}
}

func (r *schemeRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *schemeRepo) Create(dbc dbctx.Context, rows []*domain.IDScheme) ([]*domain.IDScheme, error) {
	if len(rows) == 0 {
		return []*domain.IDScheme{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *schemeRepo) GetByID(dbc dbctx.Context, id int64) (*domain.IDScheme, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.IDScheme
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *schemeRepo) GetByName(dbc dbctx.Context, name string) (*domain.IDScheme, error) {
	if name == "" {
		return nil, nil
	}
	var row domain.IDScheme
	if err := r.conn(dbc).Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *schemeRepo) List(dbc dbctx.Context) ([]*domain.IDScheme, error) {
	var rows []*domain.IDScheme
	if err := r.conn(dbc).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
