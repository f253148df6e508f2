package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
)

func SeedSource(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *domain.Source {
	tb.Helper()
	s := &domain.Source{Name: name, Description: "test feed"}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed source: %v", err)
	}
	return s
}

func SeedScheme(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *domain.IDScheme {
	tb.Helper()
	s := &domain.IDScheme{Name: name}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed scheme: %v", err)
	}
	return s
}

func SeedRelType(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, reflexive bool) *domain.RelationshipType {
	tb.Helper()
	rt := &domain.RelationshipType{
		Name:         name,
		ForwardLabel: name + " of",
		InverseLabel: "has " + name,
		Reflexive:    reflexive,
	}
	if err := tx.WithContext(ctx).Create(rt).Error; err != nil {
		tb.Fatalf("seed relationship type: %v", err)
	}
	return rt
}

func SeedPostcode(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *domain.Postcode {
	tb.Helper()
	p := &domain.Postcode{Code: code, City: "Urbana", State: "IL", Country: "US"}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed postcode: %v", err)
	}
	return p
}

// SeedOrg opens the initial version row of a new org lineage.
func SeedOrg(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, sourceID int64) *domain.ExternalOrg {
	tb.Helper()
	o := &domain.ExternalOrg{
		Name: name,
		Validity: domain.Validity{
			ValidStart: time.Now().UTC(),
			SourceID:   sourceID,
		},
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed org: %v", err)
	}
	o.OrgID = o.ID
	if err := tx.WithContext(ctx).Model(&domain.ExternalOrg{}).
		Where("id = ?", o.ID).
		Update("org_id", o.OrgID).Error; err != nil {
		tb.Fatalf("seed org id: %v", err)
	}
	return o
}
