package domain

// Direction selects how Neighbors/Walk reads edges relative to an org.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionInverse Direction = "inverse"
	DirectionBoth    Direction = "both"
)

// ValidDirection reports whether d is one of the three query directions.
func ValidDirection(d Direction) bool {
	switch d {
	case DirectionForward, DirectionInverse, DirectionBoth:
		return true
	}
	return false
}

// OrgRelationship is a directed, typed, temporally scoped edge between two
// master orgs. The semantic key is (ext1, ext2, rel); the same ordered pair
// may carry several relationship types at once but not the same type twice
// while open. The graph is a general directed multigraph and may be cyclic.
type OrgRelationship struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Ext1      int64 `gorm:"column:ext1;not null;index" json:"ext1"`
	Ext2      int64 `gorm:"column:ext2;not null;index" json:"ext2"`
	RelTypeID int64 `gorm:"column:rel;not null;index" json:"rel"`

	Validity
}

func (OrgRelationship) TableName() string { return "master_rel_external_external" }
