package repos

import (
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// PostcodeRepo reads the geographic reference rows the geocoding feeds
// maintain. The master never edits these; it only links orgs to them.
type PostcodeRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Postcode) ([]*domain.Postcode, error)
	GetByID(dbc dbctx.Context, id int64) (*domain.Postcode, error)
	GetByCode(dbc dbctx.Context, code, country string) (*domain.Postcode, error)
}

type postcodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostcodeRepo(db *gorm.DB, baseLog *logger.Logger) PostcodeRepo {
	return &postcodeRepo{db: db, log: baseLog.With("repo", "PostcodeRepo")}
}

func (r *postcodeRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *postcodeRepo) Create(dbc dbctx.Context, rows []*domain.Postcode) ([]*domain.Postcode, error) {
	if len(rows) == 0 {
		return []*domain.Postcode{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *postcodeRepo) GetByID(dbc dbctx.Context, id int64) (*domain.Postcode, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.Postcode
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *postcodeRepo) GetByCode(dbc dbctx.Context, code, country string) (*domain.Postcode, error) {
	if code == "" {
		return nil, nil
	}
	q := r.conn(dbc).Where("code = ?", code)
	if country != "" {
		q = q.Where("country = ?", country)
	}
	var row domain.Postcode
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}
