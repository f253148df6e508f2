package repos

import (
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// RelationshipTypeRepo reads the controlled vocabulary of edge types.
type RelationshipTypeRepo interface {
	Create(dbc dbctx.Context, rows []*domain.RelationshipType) ([]*domain.RelationshipType, error)
	GetByID(dbc dbctx.Context, id int64) (*domain.RelationshipType, error)
	GetByName(dbc dbctx.Context, name string) (*domain.RelationshipType, error)
	List(dbc dbctx.Context) ([]*domain.RelationshipType, error)
}

type relationshipTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationshipTypeRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipTypeRepo {
	return &relationshipTypeRepo{db: db, log: baseLog.With("repo", "RelationshipTypeRepo")}
}

func (r *relationshipTypeRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *relationshipTypeRepo) Create(dbc dbctx.Context, rows []*domain.RelationshipType) ([]*domain.RelationshipType, error) {
	if len(rows) == 0 {
		return []*domain.RelationshipType{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *relationshipTypeRepo) GetByID(dbc dbctx.Context, id int64) (*domain.RelationshipType, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.RelationshipType
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *relationshipTypeRepo) GetByName(dbc dbctx.Context, name string) (*domain.RelationshipType, error) {
	if name == "" {
		return nil, nil
	}
	var row domain.RelationshipType
	if err := r.conn(dbc).Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *relationshipTypeRepo) List(dbc dbctx.Context) ([]*domain.RelationshipType, error) {
	var rows []*domain.RelationshipType
	if err := r.conn(dbc).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
