package repos

import (
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/temporal"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// RelationshipRepo owns the directed org-to-org edge rows.
type RelationshipRepo interface {
	// AssertIdempotent opens an edge unless the identical (ext1, ext2, rel)
	// is already open. Transaction required for the lock.
	AssertIdempotent(dbc dbctx.Context, row *domain.OrgRelationship) (bool, *domain.OrgRelationship, error)

	// Close ends the (ext1, ext2, rel) edge. Returns rows closed.
	Close(dbc dbctx.Context, ext1, ext2, relTypeID int64, sourceID int64, comment string) (int64, error)

	// CloseAllTouching ends every open edge with the org on either end
	// (wildcard form used by dissolve and merge).
	CloseAllTouching(dbc dbctx.Context, orgID int64, sourceID int64, comment string) (int64, error)

	// EdgesOf returns edges touching the org in the given direction,
	// optionally filtered by type, valid at the given instant.
	EdgesOf(dbc dbctx.Context, orgID int64, relTypeID int64, dir domain.Direction, at time.Time) ([]*domain.OrgRelationship, error)

	// OpenTouching returns all open edges with the org on either end.
	OpenTouching(dbc dbctx.Context, orgID int64) ([]*domain.OrgRelationship, error)

	History(dbc dbctx.Context, ext1, ext2, relTypeID int64) ([]*domain.OrgRelationship, error)

	ListOpenTouchingStartedAt(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgRelationship, error)
	ListOpenTouchingStartedAfter(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgRelationship, error)

	GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgRelationship, error)
	CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error
	Create(dbc dbctx.Context, rows []*domain.OrgRelationship) ([]*domain.OrgRelationship, error)

	Now() time.Time
}

type relationshipRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store *temporal.Store[domain.OrgRelationship]
}

func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	return &relationshipRepo{
		db:    db,
		log:   baseLog.With("repo", "RelationshipRepo"),
		store: temporal.NewStore[domain.OrgRelationship](db, baseLog),
	}
}

func (r *relationshipRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *relationshipRepo) Now() time.Time { return r.store.Now() }

func edgeKey(ext1, ext2, relTypeID int64) temporal.Key {
	return temporal.Key{"ext1": ext1, "ext2": ext2, "rel": relTypeID}
}

func touchingScope(orgID int64) temporal.Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(ext1 = ? OR ext2 = ?)", orgID, orgID)
	}
}

func (r *relationshipRepo) AssertIdempotent(dbc dbctx.Context, row *domain.OrgRelationship) (bool, *domain.OrgRelationship, error) {
	return r.store.AssertIdempotent(dbc, edgeKey(row.Ext1, row.Ext2, row.RelTypeID), row)
}

func (r *relationshipRepo) Close(dbc dbctx.Context, ext1, ext2, relTypeID int64, sourceID int64, comment string) (int64, error) {
	return r.store.Close(dbc, edgeKey(ext1, ext2, relTypeID), sourceID, comment)
}

func (r *relationshipRepo) CloseAllTouching(dbc dbctx.Context, orgID int64, sourceID int64, comment string) (int64, error) {
	return r.store.CloseScope(dbc, touchingScope(orgID), sourceID, comment)
}

func (r *relationshipRepo) EdgesOf(dbc dbctx.Context, orgID int64, relTypeID int64, dir domain.Direction, at time.Time) ([]*domain.OrgRelationship, error) {
	q := r.conn(dbc).Model(&domain.OrgRelationship{})
	switch dir {
	case domain.DirectionForward:
		q = q.Where("ext1 = ?", orgID)
	case domain.DirectionInverse:
		q = q.Where("ext2 = ?", orgID)
	default:
		q = q.Where("(ext1 = ? OR ext2 = ?)", orgID, orgID)
	}
	if relTypeID != 0 {
		q = q.Where("rel = ?", relTypeID)
	}
	q = q.Where("valid_start <= ?", at).
		Where("valid_end IS NULL OR valid_end > ?", at)

	var rows []*domain.OrgRelationship
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *relationshipRepo) OpenTouching(dbc dbctx.Context, orgID int64) ([]*domain.OrgRelationship, error) {
	var rows []*domain.OrgRelationship
	err := touchingScope(orgID)(r.conn(dbc).Model(&domain.OrgRelationship{})).
		Where("valid_end IS NULL").
		Find(&rows).Error
	return rows, err
}

func (r *relationshipRepo) History(dbc dbctx.Context, ext1, ext2, relTypeID int64) ([]*domain.OrgRelationship, error) {
	return r.store.History(dbc, edgeKey(ext1, ext2, relTypeID))
}

func (r *relationshipRepo) ListOpenTouchingStartedAt(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgRelationship, error) {
	var rows []*domain.OrgRelationship
	err := touchingScope(orgID)(r.conn(dbc).Model(&domain.OrgRelationship{})).
		Where("valid_end IS NULL AND valid_start = ?", at).
		Find(&rows).Error
	return rows, err
}

func (r *relationshipRepo) ListOpenTouchingStartedAfter(dbc dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgRelationship, error) {
	var rows []*domain.OrgRelationship
	err := touchingScope(orgID)(r.conn(dbc).Model(&domain.OrgRelationship{})).
		Where("valid_end IS NULL AND valid_start > ?", at).
		Find(&rows).Error
	return rows, err
}

func (r *relationshipRepo) GetRowByID(dbc dbctx.Context, id int64) (*domain.OrgRelationship, error) {
	if id == 0 {
		return nil, nil
	}
	var row domain.OrgRelationship
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *relationshipRepo) CloseRowByID(dbc dbctx.Context, id int64, sourceID int64, comment string) error {
	_, err := r.store.CloseScope(dbc, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, sourceID, comment)
	return err
}

func (r *relationshipRepo) Create(dbc dbctx.Context, rows []*domain.OrgRelationship) ([]*domain.OrgRelationship, error) {
	if len(rows) == 0 {
		return []*domain.OrgRelationship{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
