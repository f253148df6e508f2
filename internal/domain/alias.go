package domain

// OrgAlias is a name asserted for an external org. The semantic key is
// (external_org, alias, lang): an org may carry many simultaneously open
// aliases, but not the same alias/language pair twice while both are open.
// Lang is an ISO/IANA language code, or empty when unspecified.
type OrgAlias struct {
	ID    int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrgID int64  `gorm:"column:external_org;not null;index" json:"external_org"`
	Alias string `gorm:"column:alias;not null;index" json:"alias"`
	Lang  string `gorm:"column:lang;not null;default:''" json:"lang,omitempty"`

	Validity
}

func (OrgAlias) TableName() string { return "master_external_org_alias" }
