package domain

// OrgLocation links a master org to a postcode in the geographic reference
// data. The semantic key is (external_org, postcode).
type OrgLocation struct {
	ID         int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrgID      int64 `gorm:"column:external_org;not null;index" json:"external_org"`
	PostcodeID int64 `gorm:"column:postcode;not null;index" json:"postcode"`

	Validity
}

func (OrgLocation) TableName() string { return "master_external_org_postcode" }
