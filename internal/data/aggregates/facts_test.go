package aggregates_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	dataagg "github.com/oriadata/orgmaster/internal/data/aggregates"
	"github.com/oriadata/orgmaster/internal/data/aggregates/testutil"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
)

type graphRecorder struct {
	events []string
}

func (g *graphRecorder) UpsertOrg(_ context.Context, orgID int64, name string) {
	g.events = append(g.events, fmt.Sprintf("upsert-org %d %s", orgID, name))
}
func (g *graphRecorder) RemoveOrg(_ context.Context, orgID int64) {
	g.events = append(g.events, fmt.Sprintf("remove-org %d", orgID))
}
func (g *graphRecorder) UpsertEdge(_ context.Context, ext1, ext2 int64, relName string) {
	g.events = append(g.events, fmt.Sprintf("upsert-edge %d %d %s", ext1, ext2, relName))
}
func (g *graphRecorder) RemoveEdge(_ context.Context, ext1, ext2 int64, relName string) {
	g.events = append(g.events, fmt.Sprintf("remove-edge %d %d %s", ext1, ext2, relName))
}
func (g *graphRecorder) RemoveEdgesOf(_ context.Context, orgID int64) {
	g.events = append(g.events, fmt.Sprintf("remove-edges-of %d", orgID))
}

func TestAliasAdd_IdempotentPerKey(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	ctx := context.Background()

	first, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: id, Alias: "Acme U", Lang: "en", SourceID: h.source.ID})
	if err != nil || !first.Created {
		t.Fatalf("first add: %+v / %v", first, err)
	}
	second, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: id, Alias: "Acme U", Lang: "en", SourceID: h.source.ID})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if second.Created || second.AliasID != first.AliasID {
		t.Fatalf("duplicate add must return the existing open row, got %+v", second)
	}

	// Same alias in another language is a distinct fact.
	other, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: id, Alias: "Acme U", Lang: "de", SourceID: h.source.ID})
	if err != nil || !other.Created {
		t.Fatalf("distinct language add: %+v / %v", other, err)
	}
}

func TestAliasAdd_UnknownOrg(t *testing.T) {
	h := newOrgHarness(t)
	_, err := h.aliases.Add(context.Background(), domainagg.AddAliasInput{OrgID: 404, Alias: "ghost", SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestAliasRetire_WildcardClosesAll(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	ctx := context.Background()

	for _, alias := range []string{"Acme U", "AU", "Acme Tech"} {
		if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: id, Alias: alias, SourceID: h.source.ID}); err != nil {
			t.Fatalf("add %q: %v", alias, err)
		}
	}
	res, err := h.aliases.Retire(ctx, domainagg.RetireAliasInput{OrgID: id, Alias: "*", SourceID: h.source.ID})
	if err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if res.Closed != 3 {
		t.Fatalf("expected 3 aliases closed, got %d", res.Closed)
	}
	open, _ := h.store.AliasRepo().ListOpenByOrg(dbc(), id)
	if len(open) != 0 {
		t.Fatalf("aliases still open: %+v", open)
	}
	// Retiring again is a silent no-op.
	res, err = h.aliases.Retire(ctx, domainagg.RetireAliasInput{OrgID: id, Alias: "*", SourceID: h.source.ID})
	if err != nil || res.Closed != 0 {
		t.Fatalf("second retire: %+v / %v", res, err)
	}
}

func TestRelationshipLink_ReflexiveGate(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	plain := h.store.AddRelType("subsidiary", false)
	loop := h.store.AddRelType("successor", true)
	ctx := context.Background()

	_, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: id, Ext2: id, RelTypeID: plain.ID, SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeSelfRelationship) {
		t.Fatalf("expected self_relationship, got %v", err)
	}
	res, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: id, Ext2: id, RelTypeID: loop.ID, SourceID: h.source.ID})
	if err != nil || !res.Created {
		t.Fatalf("reflexive type must permit the self edge: %+v / %v", res, err)
	}
}

func TestRelationshipLink_ProjectsIntoGraph(t *testing.T) {
	h := newOrgHarness(t)
	a := h.createOrg(t, "Acme University")
	b := h.createOrg(t, "Bolt College")
	relType := h.store.AddRelType("subsidiary", false)

	rec := &graphRecorder{}
	agg := dataagg.NewRelationshipAggregate(dataagg.RelationshipAggregateDeps{
		Base:          dataagg.BaseDeps{Runner: &testutil.InjectedTxRunner{}, Hooks: h.hooks},
		Orgs:          h.store.OrgRepo(),
		Relationships: h.store.RelationshipRepo(),
		RelTypes:      h.store.RelTypeRepo(),
		Graph:         rec,
	})
	ctx := context.Background()

	if _, err := agg.Link(ctx, domainagg.LinkInput{Ext1: a, Ext2: b, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("Link: %v", err)
	}
	// Idempotent re-link projects nothing.
	if _, err := agg.Link(ctx, domainagg.LinkInput{Ext1: a, Ext2: b, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("re-Link: %v", err)
	}
	if _, err := agg.Unlink(ctx, domainagg.UnlinkInput{Ext1: a, Ext2: b, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	want := []string{
		fmt.Sprintf("upsert-edge %d %d subsidiary", a, b),
		fmt.Sprintf("remove-edge %d %d subsidiary", a, b),
	}
	if len(rec.events) != len(want) {
		t.Fatalf("unexpected projection events: %v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

func TestRelationshipUnlink_AllEdgesOfOrg(t *testing.T) {
	h := newOrgHarness(t)
	a := h.createOrg(t, "Acme University")
	b := h.createOrg(t, "Bolt College")
	c := h.createOrg(t, "Cape Institute")
	relType := h.store.AddRelType("subsidiary", false)
	ctx := context.Background()

	if _, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: a, Ext2: b, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: c, Ext2: a, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}

	res, err := h.relationship.Unlink(ctx, domainagg.UnlinkInput{Ext1: a, Ext2All: true, SourceID: h.source.ID})
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if res.Closed != 2 {
		t.Fatalf("expected both edges closed, got %d", res.Closed)
	}
	open, _ := h.store.RelationshipRepo().OpenTouching(dbc(), a)
	if len(open) != 0 {
		t.Fatalf("edges still open: %+v", open)
	}
}

func TestCorrelate_ConflictAcrossSources(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	rival := h.store.AddSource("finance-feed")
	ctx := context.Background()

	first, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{
		MasterID: id, SchemeID: h.scheme.ID, OtherID: "A-77", SourceID: h.source.ID,
	})
	if err != nil || !first.Created {
		t.Fatalf("first correlate: %+v / %v", first, err)
	}

	// Same source re-asserting is idempotent.
	again, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{
		MasterID: id, SchemeID: h.scheme.ID, OtherID: "A-77", SourceID: h.source.ID,
	})
	if err != nil || again.Created || again.CorrelationID != first.CorrelationID {
		t.Fatalf("re-assert must be idempotent: %+v / %v", again, err)
	}

	// A different source colliding on the triple must conflict.
	_, err = h.correlations.Correlate(ctx, domainagg.CorrelateInput{
		MasterID: id, SchemeID: h.scheme.ID, OtherID: "A-77", SourceID: rival.ID,
	})
	if !domainagg.IsCode(err, domainagg.CodeCorrelationConflict) {
		t.Fatalf("expected correlation_conflict, got %v", err)
	}
	if len(h.hooks.Conflicts) == 0 {
		t.Fatalf("conflict hook not recorded")
	}

	// Override supersedes the old assertion instead of failing.
	forced, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{
		MasterID: id, SchemeID: h.scheme.ID, OtherID: "A-77", SourceID: rival.ID, Override: true,
	})
	if err != nil || !forced.Created || !forced.Superseded {
		t.Fatalf("override correlate: %+v / %v", forced, err)
	}
	history, _ := h.store.CorrelationRepo().History(dbc(), id, "A-77", h.scheme.ID)
	if len(history) != 2 || history[0].Open() || !history[1].Open() {
		t.Fatalf("expected closed old row and open new row, got %+v", history)
	}
}

func TestCorrelationRetire_WildcardEvictsEachKey(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	ctx := context.Background()

	for _, otherID := range []string{"A-1", "A-2"} {
		if _, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{
			MasterID: id, SchemeID: h.scheme.ID, OtherID: otherID, SourceID: h.source.ID,
		}); err != nil {
			t.Fatalf("correlate %q: %v", otherID, err)
		}
	}
	h.evicted.keys = nil

	res, err := h.correlations.Retire(ctx, domainagg.RetireCorrelationInput{
		MasterID: id, OtherID: "*", SourceID: h.source.ID,
	})
	if err != nil || res.Closed != 2 {
		t.Fatalf("Retire: %+v / %v", res, err)
	}
	if len(h.evicted.keys) != 2 {
		t.Fatalf("expected one eviction per retired correlation, got %v", h.evicted.keys)
	}
}

func TestLocationAdd_RejectsUnknownPostcode(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	_, err := h.locations.Add(context.Background(), domainagg.AddLocationInput{OrgID: id, PostcodeID: 999, SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error for unknown postcode, got %v", err)
	}
}

func TestLocationRemove_AllPostcodes(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	p1 := h.store.AddPostcode("02139")
	p2 := h.store.AddPostcode("02140")
	ctx := context.Background()

	for _, pc := range []int64{p1.ID, p2.ID} {
		if _, err := h.locations.Add(ctx, domainagg.AddLocationInput{OrgID: id, PostcodeID: pc, SourceID: h.source.ID}); err != nil {
			t.Fatalf("add postcode %d: %v", pc, err)
		}
	}
	res, err := h.locations.Remove(ctx, domainagg.RemoveLocationInput{OrgID: id, PostcodeAll: true, SourceID: h.source.ID})
	if err != nil || res.Closed != 2 {
		t.Fatalf("Remove all: %+v / %v", res, err)
	}
}

func TestAggregateWrite_CommitFailureRollsBack(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	h.runner.FailCommit = errors.New("connection reset")
	_, err := h.aliases.Add(context.Background(), domainagg.AddAliasInput{OrgID: id, Alias: "Acme U", SourceID: h.source.ID})
	if err == nil {
		t.Fatalf("expected commit failure to surface")
	}
	if h.runner.RollbackCalls == 0 {
		t.Fatalf("expected rollback on commit failure")
	}
}
