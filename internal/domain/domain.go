// Package domain holds the canonical GORM models for the entity master.
//
// Every mastered table carries the same temporal columns: a fact is true
// from ValidStart until ValidEnd, and an open fact has ValidEnd = NULL.
// Rows are never deleted; closing a fact sets ValidEnd. Every row records
// the Source that asserted it plus an optional free-text SourceComment.
package domain

import "time"

// Validity is the shared temporal + provenance column set embedded by every
// mastered table. At most one open row may exist per semantic key; the
// partial unique indexes enforcing that live in data/db.EnsureIndexes.
type Validity struct {
	ValidStart    time.Time  `gorm:"column:valid_start;not null;default:now();index" json:"valid_start"`
	ValidEnd      *time.Time `gorm:"column:valid_end;index" json:"valid_end,omitempty"`
	SourceID      int64      `gorm:"column:source;not null;index" json:"source"`
	SourceComment *string    `gorm:"column:source_comment" json:"source_comment,omitempty"`
}

// Open reports whether the fact is currently valid.
func (v Validity) Open() bool { return v.ValidEnd == nil }

// OpenAt reports whether the fact was valid at the given instant.
// The window is half-open: [ValidStart, ValidEnd).
func (v Validity) OpenAt(t time.Time) bool {
	if t.Before(v.ValidStart) {
		return false
	}
	return v.ValidEnd == nil || t.Before(*v.ValidEnd)
}
