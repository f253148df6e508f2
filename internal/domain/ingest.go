package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	IngestStatusPending  = "pending"
	IngestStatusApplied  = "applied"
	IngestStatusCreated  = "created"
	IngestStatusFailed   = "failed"
	IngestStatusConflict = "conflict"
)

// IngestBatch groups the records a feed submitted in one call. Batches are
// an audit surface: every record keeps the raw attributes it arrived with
// and the master org it ended up resolving to.
type IngestBatch struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceID   int64     `gorm:"column:source;not null;index" json:"source"`
	ReceivedAt time.Time `gorm:"column:received_at;not null;default:now();index" json:"received_at"`
	Records    int       `gorm:"column:records;not null;default:0" json:"records"`
	Failed     int       `gorm:"column:failed;not null;default:0" json:"failed"`
}

func (IngestBatch) TableName() string { return "master_ingest_batch" }

// IngestRecord is one (scheme, local id, attributes) tuple from a feed.
type IngestRecord struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BatchID  uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	SchemeID int64     `gorm:"column:scheme;not null;index" json:"scheme"`
	LocalID  string    `gorm:"column:local_id;not null;index" json:"local_id"`

	// Attributes carries the feed's raw assertion payload: name, flags,
	// aliases, relationships, postcodes. See services.FeedRecord.
	Attributes datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes"`

	OrgID  *int64 `gorm:"column:org_id;index" json:"org_id,omitempty"`
	Status string `gorm:"column:status;not null;index" json:"status"`
	Error  string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (IngestRecord) TableName() string { return "master_ingest_record" }
