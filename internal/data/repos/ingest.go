package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// IngestRepo records feed batches and per-record outcomes for audit.
type IngestRepo interface {
	CreateBatch(dbc dbctx.Context, row *domain.IngestBatch) (*domain.IngestBatch, error)
	UpdateBatchCounts(dbc dbctx.Context, id uuid.UUID, records, failed int) error

	CreateRecords(dbc dbctx.Context, rows []*domain.IngestRecord) ([]*domain.IngestRecord, error)
	UpdateRecord(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	ListRecordsByBatch(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.IngestRecord, error)
}

type ingestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestRepo(db *gorm.DB, baseLog *logger.Logger) IngestRepo {
	return &ingestRepo{db: db, log: baseLog.With("repo", "IngestRepo")}
}

func (r *ingestRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *ingestRepo) CreateBatch(dbc dbctx.Context, row *domain.IngestBatch) (*domain.IngestBatch, error) {
	if err := r.conn(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *ingestRepo) UpdateBatchCounts(dbc dbctx.Context, id uuid.UUID, records, failed int) error {
	return r.conn(dbc).Model(&domain.IngestBatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"records": records, "failed": failed}).Error
}

func (r *ingestRepo) CreateRecords(dbc dbctx.Context, rows []*domain.IngestRecord) ([]*domain.IngestRecord, error) {
	if len(rows) == 0 {
		return []*domain.IngestRecord{}, nil
	}
	if err := r.conn(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ingestRepo) UpdateRecord(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&domain.IngestRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *ingestRepo) ListRecordsByBatch(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.IngestRecord, error) {
	var rows []*domain.IngestRecord
	err := r.conn(dbc).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
