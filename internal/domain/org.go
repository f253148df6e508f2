package domain

import "time"

// OrgFlags is the classification capability set for an external org. The
// flags are independent booleans, not a discriminated kind: an org may be
// simultaneously nonprofit and educational.
type OrgFlags struct {
	Educational bool `gorm:"column:educational;not null;default:false" json:"educational"`
	Business    bool `gorm:"column:business;not null;default:false" json:"business"`
	Nonprofit   bool `gorm:"column:nonprofit;not null;default:false" json:"nonprofit"`
	Government  bool `gorm:"column:government;not null;default:false" json:"government"`
}

// ExternalOrg is a version row of a canonical master organization. OrgID is
// the stable identifier referenced by every other subsystem; ID is the
// version row key. Superseding an org (rename through version history, flag
// change) closes the open row and opens a new one with the same OrgID.
type ExternalOrg struct {
	ID    int64  `gorm:"primaryKey;autoIncrement" json:"-"`
	OrgID int64  `gorm:"column:org_id;not null;index" json:"id"`
	Name  string `gorm:"column:name;not null;index" json:"name"`

	OrgFlags
	Validity
}

func (ExternalOrg) TableName() string { return "master_external_org" }

// MergeEvent records every merge so a later split can locate the merge
// instant and partition dependent facts around it.
type MergeEvent struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WinnerID      int64     `gorm:"column:winner_id;not null;index" json:"winner_id"`
	LoserID       int64     `gorm:"column:loser_id;not null;index" json:"loser_id"`
	MergedAt      time.Time `gorm:"column:merged_at;not null;index" json:"merged_at"`
	SourceID      int64     `gorm:"column:source;not null" json:"source"`
	SourceComment *string   `gorm:"column:source_comment" json:"source_comment,omitempty"`
}

func (MergeEvent) TableName() string { return "master_merge_event" }
