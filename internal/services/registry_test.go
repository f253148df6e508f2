package services_test

import (
	"context"
	"testing"

	"github.com/oriadata/orgmaster/internal/data/aggregates/testutil"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
	"github.com/oriadata/orgmaster/internal/services"
)

func newRegistryService(t *testing.T) (services.RegistryService, *testutil.MemStore) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := testutil.NewMemStore()
	svc := services.NewRegistryService(nil, log,
		store.SourceRepo(), store.SchemeRepo(), store.RelTypeRepo(), store.PostcodeRepo())
	return svc, store
}

func TestCreateSource_NamesAreUnique(t *testing.T) {
	svc, _ := newRegistryService(t)
	ctx := context.Background()

	src, err := svc.CreateSource(ctx, "registrar", "state registrar feed")
	if err != nil || src.ID == 0 {
		t.Fatalf("CreateSource: %+v / %v", src, err)
	}
	if _, err := svc.CreateSource(ctx, "registrar", ""); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("duplicate name must conflict, got %v", err)
	}
	if _, err := svc.CreateSource(ctx, "   ", ""); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("blank name must be rejected, got %v", err)
	}

	got, err := svc.GetSourceByName(ctx, " registrar ")
	if err != nil || got == nil || got.ID != src.ID {
		t.Fatalf("lookup must trim the name: %+v / %v", got, err)
	}
}

func TestCreateRelationshipType_RequiresBothLabels(t *testing.T) {
	svc, _ := newRegistryService(t)
	ctx := context.Background()

	_, err := svc.CreateRelationshipType(ctx, &domain.RelationshipType{Name: "subsidiary", ForwardLabel: "subsidiary of"})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing inverse label must be rejected, got %v", err)
	}
	rt, err := svc.CreateRelationshipType(ctx, &domain.RelationshipType{
		Name: "subsidiary", ForwardLabel: "subsidiary of", InverseLabel: "parent of",
	})
	if err != nil || rt.ID == 0 {
		t.Fatalf("CreateRelationshipType: %+v / %v", rt, err)
	}
	if _, err := svc.CreateRelationshipType(ctx, &domain.RelationshipType{
		Name: "subsidiary", ForwardLabel: "x", InverseLabel: "y",
	}); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("duplicate type must conflict, got %v", err)
	}
}

func TestCreatePostcode_IdempotentWithDefaultCountry(t *testing.T) {
	svc, _ := newRegistryService(t)
	ctx := context.Background()

	first, err := svc.CreatePostcode(ctx, &domain.Postcode{Code: "02139"})
	if err != nil || first.Country != "US" {
		t.Fatalf("CreatePostcode: %+v / %v", first, err)
	}
	again, err := svc.CreatePostcode(ctx, &domain.Postcode{Code: "02139", Country: "US"})
	if err != nil || again.ID != first.ID {
		t.Fatalf("re-creating an existing postcode must return the existing row: %+v / %v", again, err)
	}
}
