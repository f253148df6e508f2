package domain

import "time"

// Source is an entry in the controlled list of data sources. Every fact in
// the master records which source asserted it. Sources are immutable and
// never deleted once referenced.
type Source struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Source) TableName() string { return "master_data_source" }

// IDScheme names an external identifier system (agency codes, FACTS IDs,
// Banner codes). Correlations map a master org to an identifier in a scheme.
type IDScheme struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (IDScheme) TableName() string { return "master_other_id_scheme" }

// RelationshipType is the controlled vocabulary for directed org-to-org
// edges. ForwardLabel reads ext1 -> ext2 ("subsidiary of"); InverseLabel
// reads ext2 -> ext1 ("parent of"). Reflexive controls whether an edge of
// this type may connect an org to itself.
type RelationshipType struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	ForwardLabel string    `gorm:"column:forward_label;not null" json:"forward_label"`
	InverseLabel string    `gorm:"column:inverse_label;not null" json:"inverse_label"`
	Reflexive    bool      `gorm:"column:reflexive;not null;default:false" json:"reflexive"`
	Comment      string    `gorm:"column:comment" json:"comment,omitempty"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (RelationshipType) TableName() string { return "master_org_relationship_type" }

// Postcode is geographic reference data maintained by the geocoding feeds.
// The master only links orgs to postcode ids; the feed owns the rows.
type Postcode struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Code    string `gorm:"column:code;not null;index" json:"code"`
	City    string `gorm:"column:city" json:"city,omitempty"`
	State   string `gorm:"column:state" json:"state,omitempty"`
	Country string `gorm:"column:country;not null;default:'US'" json:"country"`
}

func (Postcode) TableName() string { return "master_postcode" }
