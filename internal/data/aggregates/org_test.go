package aggregates_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	dataagg "github.com/oriadata/orgmaster/internal/data/aggregates"
	"github.com/oriadata/orgmaster/internal/data/aggregates/testutil"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
)

type evictRecorder struct {
	keys []string
}

func (f *evictRecorder) InvalidateCorrelation(_ context.Context, schemeID int64, otherID string) {
	f.keys = append(f.keys, fmt.Sprintf("%d:%s", schemeID, otherID))
}

type orgHarness struct {
	store   *testutil.MemStore
	runner  *testutil.InjectedTxRunner
	hooks   *testutil.HooksRecorder
	evicted *evictRecorder

	orgs         domainagg.OrgAggregate
	aliases      domainagg.AliasAggregate
	relationship domainagg.RelationshipAggregate
	correlations domainagg.CorrelationAggregate
	locations    domainagg.LocationAggregate

	source *domain.Source
	scheme *domain.IDScheme
}

func newOrgHarness(t *testing.T) *orgHarness {
	t.Helper()
	store := testutil.NewMemStore()
	h := &orgHarness{
		store:   store,
		runner:  &testutil.InjectedTxRunner{},
		hooks:   &testutil.HooksRecorder{},
		evicted: &evictRecorder{},
		source:  store.AddSource("registrar"),
		scheme:  store.AddScheme("agency-code"),
	}
	base := dataagg.BaseDeps{Runner: h.runner, Hooks: h.hooks}
	h.orgs = dataagg.NewOrgAggregate(dataagg.OrgAggregateDeps{
		Base:          base,
		Orgs:          store.OrgRepo(),
		Aliases:       store.AliasRepo(),
		Relationships: store.RelationshipRepo(),
		Correlations:  store.CorrelationRepo(),
		Locations:     store.LocationRepo(),
		MergeEvents:   store.MergeEventRepo(),
		Invalidator:   h.evicted,
	})
	h.aliases = dataagg.NewAliasAggregate(dataagg.AliasAggregateDeps{
		Base:    base,
		Orgs:    store.OrgRepo(),
		Aliases: store.AliasRepo(),
	})
	h.relationship = dataagg.NewRelationshipAggregate(dataagg.RelationshipAggregateDeps{
		Base:          base,
		Orgs:          store.OrgRepo(),
		Relationships: store.RelationshipRepo(),
		RelTypes:      store.RelTypeRepo(),
	})
	h.correlations = dataagg.NewCorrelationAggregate(dataagg.CorrelationAggregateDeps{
		Base:         base,
		Orgs:         store.OrgRepo(),
		Correlations: store.CorrelationRepo(),
		Schemes:      store.SchemeRepo(),
		Cache:        h.evicted,
	})
	h.locations = dataagg.NewLocationAggregate(dataagg.LocationAggregateDeps{
		Base:      base,
		Orgs:      store.OrgRepo(),
		Locations: store.LocationRepo(),
		Postcodes: store.PostcodeRepo(),
	})
	return h
}

func (h *orgHarness) createOrg(t *testing.T, name string) int64 {
	t.Helper()
	res, err := h.orgs.Create(context.Background(), domainagg.CreateOrgInput{
		Name:     name,
		SourceID: h.source.ID,
	})
	if err != nil {
		t.Fatalf("Create(%q): %v", name, err)
	}
	return res.OrgID
}

func TestOrgCreate_AllocatesStableIDs(t *testing.T) {
	h := newOrgHarness(t)

	a := h.createOrg(t, "Acme University")
	b := h.createOrg(t, "Bolt College")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("expected distinct non-zero org ids, got %d and %d", a, b)
	}

	open, err := h.store.OrgRepo().OpenByOrgID(dbc(), a)
	if err != nil || open == nil {
		t.Fatalf("expected open version for org %d, got %v / %v", a, open, err)
	}
	if open.Name != "Acme University" || !open.Open() {
		t.Fatalf("unexpected open row: %+v", open)
	}
}

func TestOrgCreate_RejectsMissingNameAndSource(t *testing.T) {
	h := newOrgHarness(t)

	_, err := h.orgs.Create(context.Background(), domainagg.CreateOrgInput{Name: "  ", SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	_, err = h.orgs.Create(context.Background(), domainagg.CreateOrgInput{Name: "Acme"})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error for missing source, got %v", err)
	}
	if h.runner.CommitCalls != 0 {
		t.Fatalf("validation failures must not open transactions, commits=%d", h.runner.CommitCalls)
	}
}

func TestOrgRename_SilentWhenUnchanged(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	res, err := h.orgs.Rename(context.Background(), domainagg.RenameOrgInput{
		OrgID:    id,
		NewName:  "Acme University",
		SourceID: h.source.ID,
	})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if res.Renamed {
		t.Fatalf("expected silent success for unchanged name")
	}
	if res.OldName != "Acme University" {
		t.Fatalf("unexpected old name %q", res.OldName)
	}
}

func TestOrgRename_KeepsOldNameAsAlias(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	res, err := h.orgs.Rename(context.Background(), domainagg.RenameOrgInput{
		OrgID:        id,
		NewName:      "Acme State University",
		SourceID:     h.source.ID,
		AliasOldName: true,
		OldNameLang:  "en",
	})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !res.Renamed || res.OldName != "Acme University" {
		t.Fatalf("unexpected result %+v", res)
	}

	open, err := h.store.OrgRepo().OpenByOrgID(dbc(), id)
	if err != nil || open == nil || open.Name != "Acme State University" {
		t.Fatalf("expected renamed open row, got %+v / %v", open, err)
	}
	aliases, err := h.store.AliasRepo().ListOpenByOrg(dbc(), id)
	if err != nil || len(aliases) != 1 {
		t.Fatalf("expected one alias, got %d / %v", len(aliases), err)
	}
	if aliases[0].Alias != "Acme University" || aliases[0].Lang != "en" {
		t.Fatalf("unexpected alias row %+v", aliases[0])
	}
}

func TestOrgRename_SupersedesSoOldNameStaysQueryable(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	before := h.store.Now()
	h.store.Advance(time.Hour)

	_, err := h.orgs.Rename(context.Background(), domainagg.RenameOrgInput{
		OrgID:    id,
		NewName:  "Acme State University",
		SourceID: h.source.ID,
	})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}

	history, err := h.store.OrgRepo().History(dbc(), id)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected two version rows after rename, got %d / %v", len(history), err)
	}
	if history[0].Open() || history[0].Name != "Acme University" {
		t.Fatalf("expected closed old-name version, got %+v", history[0])
	}
	if !history[1].Open() || history[1].Name != "Acme State University" {
		t.Fatalf("expected open new-name version, got %+v", history[1])
	}

	asOf, err := h.store.OrgRepo().AsOfByOrgID(dbc(), id, before)
	if err != nil || asOf == nil {
		t.Fatalf("AsOfByOrgID: %v / %v", asOf, err)
	}
	if asOf.Name != "Acme University" {
		t.Fatalf("point-in-time read before the rename returned %q", asOf.Name)
	}
}

func TestOrgSetFlags_SupersedesOnChangeOnly(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	noop, err := h.orgs.SetFlags(context.Background(), domainagg.SetOrgFlagsInput{
		OrgID:    id,
		SourceID: h.source.ID,
	})
	if err != nil || noop.Superseded {
		t.Fatalf("expected silent no-op for identical flags, got %+v / %v", noop, err)
	}

	h.store.Advance(time.Second)
	res, err := h.orgs.SetFlags(context.Background(), domainagg.SetOrgFlagsInput{
		OrgID:    id,
		Flags:    domain.OrgFlags{Educational: true, Nonprofit: true},
		SourceID: h.source.ID,
	})
	if err != nil || !res.Superseded {
		t.Fatalf("expected supersede, got %+v / %v", res, err)
	}

	history, err := h.store.OrgRepo().History(dbc(), id)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected two version rows, got %d / %v", len(history), err)
	}
	if history[0].Open() || !history[1].Open() {
		t.Fatalf("expected closed then open version rows")
	}
	if !history[1].Educational || !history[1].Nonprofit {
		t.Fatalf("flags not carried onto the new version: %+v", history[1].OrgFlags)
	}
}

func TestOrgDissolve_CascadesAndStaysIdempotent(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")
	other := h.createOrg(t, "Bolt College")
	relType := h.store.AddRelType("subsidiary", false)
	pc := h.store.AddPostcode("02139")

	ctx := context.Background()
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: id, Alias: "Acme U", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}
	if _, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: id, Ext2: other, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{MasterID: id, SchemeID: h.scheme.ID, OtherID: "A-77", SourceID: h.source.ID}); err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if _, err := h.locations.Add(ctx, domainagg.AddLocationInput{OrgID: id, PostcodeID: pc.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("location add: %v", err)
	}

	h.store.Advance(time.Second)
	res, err := h.orgs.Dissolve(ctx, domainagg.DissolveOrgInput{OrgID: id, SourceID: h.source.ID, Comment: "ceased operations"})
	if err != nil {
		t.Fatalf("Dissolve: %v", err)
	}
	if !res.Closed {
		t.Fatalf("expected org closed")
	}
	if res.AliasesClosed != 1 || res.RelationshipsClosed != 1 || res.CorrelationsClosed != 1 || res.LocationsClosed != 1 {
		t.Fatalf("unexpected cascade counts: %+v", res)
	}
	if open, _ := h.store.OrgRepo().OpenByOrgID(dbc(), id); open != nil {
		t.Fatalf("org still open after dissolve")
	}
	// Resolve cache eviction for the closed correlation.
	if len(h.evicted.keys) == 0 || h.evicted.keys[len(h.evicted.keys)-1] != fmt.Sprintf("%d:A-77", h.scheme.ID) {
		t.Fatalf("expected correlation eviction, got %v", h.evicted.keys)
	}

	again, err := h.orgs.Dissolve(ctx, domainagg.DissolveOrgInput{OrgID: id, SourceID: h.source.ID})
	if err != nil {
		t.Fatalf("second Dissolve: %v", err)
	}
	if again.Closed {
		t.Fatalf("expected silent success for already-dissolved org")
	}
}

func TestOrgMerge_RepointsDependentsAtOneInstant(t *testing.T) {
	h := newOrgHarness(t)
	winner := h.createOrg(t, "Acme University")
	loser := h.createOrg(t, "Acme College")
	third := h.createOrg(t, "Bolt College")
	relType := h.store.AddRelType("subsidiary", false)
	pc := h.store.AddPostcode("02139")

	ctx := context.Background()
	// The winner already holds the shared alias; the copy must dedupe.
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: winner, Alias: "Acme", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: loser, Alias: "Acme", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: loser, Alias: "Acme Tech", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}
	if _, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: loser, Ext2: third, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("link loser-third: %v", err)
	}
	// Winner-loser edge becomes reflexive on merge and must only expire.
	if _, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: loser, Ext2: winner, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("link loser-winner: %v", err)
	}
	if _, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{MasterID: loser, SchemeID: h.scheme.ID, OtherID: "L-9", SourceID: h.source.ID}); err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if _, err := h.locations.Add(ctx, domainagg.AddLocationInput{OrgID: loser, PostcodeID: pc.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("location add: %v", err)
	}

	mergedAt := h.store.Advance(time.Minute)
	res, err := h.orgs.Merge(ctx, domainagg.MergeOrgsInput{WinnerID: winner, LoserID: loser, SourceID: h.source.ID, Comment: "same entity"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.MergedAt.Equal(mergedAt) {
		t.Fatalf("merged at %v, want %v", res.MergedAt, mergedAt)
	}
	if res.AliasesMoved != 1 {
		t.Fatalf("expected 1 alias moved (shared alias dedupes), got %d", res.AliasesMoved)
	}
	if res.RelationshipsMoved != 1 {
		t.Fatalf("expected 1 relationship moved (winner-loser edge expires), got %d", res.RelationshipsMoved)
	}
	if res.CorrelationsMoved != 1 || res.LocationsMoved != 1 {
		t.Fatalf("unexpected move counts: %+v", res)
	}

	if open, _ := h.store.OrgRepo().OpenByOrgID(dbc(), loser); open != nil {
		t.Fatalf("loser must be dissolved after merge")
	}
	// Every copied row starts exactly at the merge instant so a later split
	// can find it, and keeps the original assertion's provenance.
	winnerAliases, _ := h.store.AliasRepo().ListOpenStartedAt(dbc(), winner, mergedAt)
	if len(winnerAliases) != 1 || winnerAliases[0].Alias != "Acme Tech" {
		t.Fatalf("unexpected copied aliases: %+v", winnerAliases)
	}
	if winnerAliases[0].SourceID != h.source.ID {
		t.Fatalf("copied alias lost provenance: %+v", winnerAliases[0])
	}
	corr, _ := h.store.CorrelationRepo().ResolveOpen(dbc(), h.scheme.ID, "L-9")
	if corr == nil || corr.MasterID != winner {
		t.Fatalf("external id must resolve to the winner, got %+v", corr)
	}

	events, _ := h.store.MergeEventRepo().ListByOrg(dbc(), winner)
	if len(events) != 1 || events[0].LoserID != loser || !events[0].MergedAt.Equal(mergedAt) {
		t.Fatalf("unexpected merge events: %+v", events)
	}
	// The loser's closed rows carry the merge comment.
	history, _ := h.store.AliasRepo().History(dbc(), loser, "Acme Tech", "")
	if len(history) != 1 || history[0].SourceComment == nil || !strings.Contains(*history[0].SourceComment, fmt.Sprintf("merged into org %d", winner)) {
		t.Fatalf("expected merge comment on closed loser alias, got %+v", history)
	}
}

func TestOrgMerge_FailsOnDanglingReference(t *testing.T) {
	h := newOrgHarness(t)
	winner := h.createOrg(t, "Acme University")
	loser := h.createOrg(t, "Acme College")
	third := h.createOrg(t, "Bolt College")
	relType := h.store.AddRelType("subsidiary", false)

	ctx := context.Background()
	if _, err := h.relationship.Link(ctx, domainagg.LinkInput{Ext1: loser, Ext2: third, RelTypeID: relType.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	// Close the third org's version row directly, leaving the edge open.
	// That inconsistency must stop the merge, not silently lose the edge.
	if _, err := h.store.OrgRepo().Close(dbc(), third, h.source.ID, "broken legacy row"); err != nil {
		t.Fatalf("close third: %v", err)
	}

	h.store.Advance(time.Minute)
	_, err := h.orgs.Merge(ctx, domainagg.MergeOrgsInput{WinnerID: winner, LoserID: loser, SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeDanglingReference) {
		t.Fatalf("expected dangling_reference, got %v", err)
	}
	if h.runner.RollbackCalls == 0 {
		t.Fatalf("failed merge must roll back")
	}
}

func TestOrgMerge_RejectsSelfMerge(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	_, err := h.orgs.Merge(context.Background(), domainagg.MergeOrgsInput{WinnerID: id, LoserID: id, SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrgSplit_RequiresRecordedMerge(t *testing.T) {
	h := newOrgHarness(t)
	id := h.createOrg(t, "Acme University")

	_, err := h.orgs.Split(context.Background(), domainagg.SplitOrgInput{OrgID: id, NewName: "Acme College", SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition_failed, got %v", err)
	}
}

func TestOrgSplit_MovesMergeInstantFactsBack(t *testing.T) {
	h := newOrgHarness(t)
	winner := h.createOrg(t, "Acme University")
	loser := h.createOrg(t, "Acme College")
	pc := h.store.AddPostcode("02139")

	ctx := context.Background()
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: loser, Alias: "Acme Tech", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}
	if _, err := h.correlations.Correlate(ctx, domainagg.CorrelateInput{MasterID: loser, SchemeID: h.scheme.ID, OtherID: "L-9", SourceID: h.source.ID}); err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if _, err := h.locations.Add(ctx, domainagg.AddLocationInput{OrgID: loser, PostcodeID: pc.ID, SourceID: h.source.ID}); err != nil {
		t.Fatalf("location add: %v", err)
	}
	// The winner's own alias predates the merge and must not move.
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: winner, Alias: "Acme U", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}

	h.store.Advance(time.Minute)
	if _, err := h.orgs.Merge(ctx, domainagg.MergeOrgsInput{WinnerID: winner, LoserID: loser, SourceID: h.source.ID}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	splitAt := h.store.Advance(time.Hour)
	res, err := h.orgs.Split(ctx, domainagg.SplitOrgInput{
		OrgID:    winner,
		NewName:  "Acme College",
		SourceID: h.source.ID,
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.NewOrgID == 0 || res.NewOrgID == winner {
		t.Fatalf("expected a fresh org id, got %d", res.NewOrgID)
	}
	if res.AliasesMoved != 1 || res.CorrelationsMoved != 1 || res.LocationsMoved != 1 {
		t.Fatalf("unexpected move counts: %+v", res)
	}

	fresh, _ := h.store.OrgRepo().OpenByOrgID(dbc(), res.NewOrgID)
	if fresh == nil || fresh.Name != "Acme College" || !fresh.ValidStart.Equal(splitAt) {
		t.Fatalf("unexpected split-off org: %+v", fresh)
	}
	moved, _ := h.store.AliasRepo().ListOpenByOrg(dbc(), res.NewOrgID)
	if len(moved) != 1 || moved[0].Alias != "Acme Tech" || !moved[0].ValidStart.Equal(splitAt) {
		t.Fatalf("unexpected moved aliases: %+v", moved)
	}
	kept, _ := h.store.AliasRepo().ListOpenByOrg(dbc(), winner)
	if len(kept) != 1 || kept[0].Alias != "Acme U" {
		t.Fatalf("winner's own alias must stay, got %+v", kept)
	}
	corr, _ := h.store.CorrelationRepo().ResolveOpen(dbc(), h.scheme.ID, "L-9")
	if corr == nil || corr.MasterID != res.NewOrgID {
		t.Fatalf("external id must follow the split-off org, got %+v", corr)
	}
}

func TestOrgSplit_AmbiguousPostMergeFactsNeedAssignment(t *testing.T) {
	h := newOrgHarness(t)
	winner := h.createOrg(t, "Acme University")
	loser := h.createOrg(t, "Acme College")

	ctx := context.Background()
	h.store.Advance(time.Minute)
	if _, err := h.orgs.Merge(ctx, domainagg.MergeOrgsInput{WinnerID: winner, LoserID: loser, SourceID: h.source.ID}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// A fact asserted after the merge belongs to nobody in particular.
	h.store.Advance(time.Minute)
	added, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: winner, Alias: "New Era", SourceID: h.source.ID})
	if err != nil {
		t.Fatalf("alias add: %v", err)
	}

	h.store.Advance(time.Minute)
	_, err = h.orgs.Split(ctx, domainagg.SplitOrgInput{OrgID: winner, NewName: "Acme College", SourceID: h.source.ID})
	if !domainagg.IsCode(err, domainagg.CodeSplitAmbiguity) {
		t.Fatalf("expected split_ambiguity, got %v", err)
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("alias/%d", added.AliasID)) {
		t.Fatalf("ambiguity error must name the unassigned fact, got %v", err)
	}
	if open, _ := h.store.OrgRepo().OpenByOrgID(dbc(), winner); open == nil {
		t.Fatalf("failed split must leave the merged org untouched")
	}

	res, err := h.orgs.Split(ctx, domainagg.SplitOrgInput{
		OrgID:    winner,
		NewName:  "Acme College",
		SourceID: h.source.ID,
		Assignments: []domainagg.FactAssignment{
			{Kind: domainagg.FactAlias, RowID: added.AliasID, MoveToNew: true},
		},
	})
	if err != nil {
		t.Fatalf("Split with assignment: %v", err)
	}
	moved, _ := h.store.AliasRepo().ListOpenByOrg(dbc(), res.NewOrgID)
	if len(moved) != 1 || moved[0].Alias != "New Era" {
		t.Fatalf("assigned alias must move, got %+v", moved)
	}
}

func TestOrgSplit_AssignmentCanKeepMergeInstantFact(t *testing.T) {
	h := newOrgHarness(t)
	winner := h.createOrg(t, "Acme University")
	loser := h.createOrg(t, "Acme College")

	ctx := context.Background()
	if _, err := h.aliases.Add(ctx, domainagg.AddAliasInput{OrgID: loser, Alias: "Acme Tech", SourceID: h.source.ID}); err != nil {
		t.Fatalf("alias add: %v", err)
	}

	mergedAt := h.store.Advance(time.Minute)
	if _, err := h.orgs.Merge(ctx, domainagg.MergeOrgsInput{WinnerID: winner, LoserID: loser, SourceID: h.source.ID}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	copied, _ := h.store.AliasRepo().ListOpenStartedAt(dbc(), winner, mergedAt)
	if len(copied) != 1 {
		t.Fatalf("expected one copied alias, got %d", len(copied))
	}

	h.store.Advance(time.Minute)
	res, err := h.orgs.Split(ctx, domainagg.SplitOrgInput{
		OrgID:    winner,
		NewName:  "Acme College",
		SourceID: h.source.ID,
		Assignments: []domainagg.FactAssignment{
			{Kind: domainagg.FactAlias, RowID: copied[0].ID, MoveToNew: false},
		},
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.AliasesMoved != 0 {
		t.Fatalf("overridden alias must stay with the merged org, moved=%d", res.AliasesMoved)
	}
	kept, _ := h.store.AliasRepo().ListOpenByOrg(dbc(), winner)
	if len(kept) != 1 || kept[0].Alias != "Acme Tech" {
		t.Fatalf("expected alias kept on winner, got %+v", kept)
	}
}
