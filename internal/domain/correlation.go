package domain

// OrgCorrelation maps a master org to an identifier in an externally-defined
// scheme. The semantic key is (master_id, other_id, scheme). Remapping an
// external id to a different master org closes the old row and opens a new
// one; correlations are never overwritten in place.
type OrgCorrelation struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	MasterID int64  `gorm:"column:master_id;not null;index" json:"master_id"`
	OtherID  string `gorm:"column:other_id;not null;index" json:"other_id"`
	SchemeID int64  `gorm:"column:scheme;not null;index" json:"scheme"`

	Validity
}

func (OrgCorrelation) TableName() string { return "master_external_org_other_id" }
