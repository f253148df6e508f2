package repos_test

import (
	"context"
	"testing"
	"time"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/data/repos/testutil"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

func TestOrgRepo_LineageAndSupersede(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "org-repo-src")
	repo := repos.NewOrgRepo(gdb, testutil.Logger(t))

	row, err := repo.CreateLineage(dbc, &domain.ExternalOrg{
		Name:     "Lineage Co",
		Validity: domain.Validity{ValidStart: repo.Now(), SourceID: src.ID},
	})
	if err != nil {
		t.Fatalf("CreateLineage: %v", err)
	}
	if row.OrgID == 0 || row.OrgID != row.ID {
		t.Fatalf("lineage id must equal the first row id: %+v", row)
	}

	open, err := repo.OpenByOrgID(dbc, row.OrgID)
	if err != nil || open == nil || open.Name != "Lineage Co" {
		t.Fatalf("OpenByOrgID: %+v / %v", open, err)
	}

	next := &domain.ExternalOrg{
		OrgID:    row.OrgID,
		Name:     "Lineage Holdings",
		Validity: domain.Validity{ValidStart: repo.Now(), SourceID: src.ID},
	}
	if err := repo.Supersede(dbc, row.OrgID, src.ID, "restructured", next); err != nil {
		t.Fatalf("Supersede: %v", err)
	}

	history, err := repo.History(dbc, row.OrgID)
	if err != nil || len(history) != 2 {
		t.Fatalf("History: %d rows / %v", len(history), err)
	}
	if history[0].Open() || !history[1].Open() {
		t.Fatalf("supersede must leave exactly the new row open: %+v", history)
	}
	if history[0].SourceComment == nil || *history[0].SourceComment != "restructured" {
		t.Fatalf("close comment missing on superseded row: %+v", history[0])
	}

	open, err = repo.OpenByOrgID(dbc, row.OrgID)
	if err != nil || open == nil || open.Name != "Lineage Holdings" {
		t.Fatalf("open row after supersede: %+v / %v", open, err)
	}

	if n, err := repo.Close(dbc, row.OrgID, src.ID, "dissolved"); err != nil || n != 1 {
		t.Fatalf("Close: n=%d err=%v", n, err)
	}
	open, err = repo.OpenByOrgID(dbc, row.OrgID)
	if err != nil || open != nil {
		t.Fatalf("dissolved org must have no open row: %+v / %v", open, err)
	}
}

func TestAliasRepo_WildcardClose(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "alias-repo-src")
	org := testutil.SeedOrg(t, ctx, tx, "Alias Co", src.ID)
	repo := repos.NewAliasRepo(gdb, testutil.Logger(t))

	for _, alias := range []string{"AC", "Alias Company", "A-Co"} {
		created, _, err := repo.AssertIdempotent(dbc, &domain.OrgAlias{
			OrgID: org.OrgID,
			Alias: alias,
			Validity: domain.Validity{ValidStart: repo.Now(), SourceID: src.ID},
		})
		if err != nil || !created {
			t.Fatalf("assert %q: created=%v err=%v", alias, created, err)
		}
	}

	// Re-asserting an open alias reports the existing row.
	created, existing, err := repo.AssertIdempotent(dbc, &domain.OrgAlias{
		OrgID: org.OrgID, Alias: "AC",
		Validity: domain.Validity{ValidStart: repo.Now(), SourceID: src.ID},
	})
	if err != nil || created || existing == nil {
		t.Fatalf("re-assert: created=%v existing=%+v err=%v", created, existing, err)
	}

	if n, err := repo.Close(dbc, org.OrgID, "AC", "", src.ID, ""); err != nil || n != 1 {
		t.Fatalf("single close: n=%d err=%v", n, err)
	}
	if n, err := repo.Close(dbc, org.OrgID, "", "", src.ID, "org dissolved"); err != nil || n != 2 {
		t.Fatalf("wildcard close: n=%d err=%v", n, err)
	}
	open, err := repo.ListOpenByOrg(dbc, org.OrgID)
	if err != nil || len(open) != 0 {
		t.Fatalf("aliases still open after wildcard close: %+v / %v", open, err)
	}
}

func TestRelationshipRepo_EdgesOfDirections(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "rel-repo-src")
	relType := testutil.SeedRelType(t, ctx, tx, "rel-repo-subsidiary", false)
	a := testutil.SeedOrg(t, ctx, tx, "Rel A", src.ID)
	b := testutil.SeedOrg(t, ctx, tx, "Rel B", src.ID)
	c := testutil.SeedOrg(t, ctx, tx, "Rel C", src.ID)
	repo := repos.NewRelationshipRepo(gdb, testutil.Logger(t))

	for _, pair := range [][2]int64{{a.OrgID, b.OrgID}, {c.OrgID, a.OrgID}} {
		created, _, err := repo.AssertIdempotent(dbc, &domain.OrgRelationship{
			Ext1:      pair[0],
			Ext2:      pair[1],
			RelTypeID: relType.ID,
			Validity:  domain.Validity{ValidStart: repo.Now(), SourceID: src.ID},
		})
		if err != nil || !created {
			t.Fatalf("assert edge %v: created=%v err=%v", pair, created, err)
		}
	}
	now := repo.Now()

	forward, err := repo.EdgesOf(dbc, a.OrgID, 0, domain.DirectionForward, now)
	if err != nil || len(forward) != 1 || forward[0].Ext2 != b.OrgID {
		t.Fatalf("forward edges: %+v / %v", forward, err)
	}
	inverse, err := repo.EdgesOf(dbc, a.OrgID, 0, domain.DirectionInverse, now)
	if err != nil || len(inverse) != 1 || inverse[0].Ext1 != c.OrgID {
		t.Fatalf("inverse edges: %+v / %v", inverse, err)
	}
	both, err := repo.EdgesOf(dbc, a.OrgID, 0, domain.DirectionBoth, now)
	if err != nil || len(both) != 2 {
		t.Fatalf("both edges: %+v / %v", both, err)
	}

	if n, err := repo.CloseAllTouching(dbc, a.OrgID, src.ID, "merged away"); err != nil || n != 2 {
		t.Fatalf("CloseAllTouching: n=%d err=%v", n, err)
	}
	open, err := repo.OpenTouching(dbc, a.OrgID)
	if err != nil || len(open) != 0 {
		t.Fatalf("edges still open: %+v / %v", open, err)
	}
}

func TestCorrelationRepo_ResolveAcrossTime(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "corr-repo-src")
	scheme := testutil.SeedScheme(t, ctx, tx, "corr-repo-scheme")
	first := testutil.SeedOrg(t, ctx, tx, "Corr First", src.ID)
	second := testutil.SeedOrg(t, ctx, tx, "Corr Second", src.ID)
	repo := repos.NewCorrelationRepo(gdb, testutil.Logger(t))

	start := repo.Now()
	if _, err := repo.Create(dbc, []*domain.OrgCorrelation{{
		MasterID: first.OrgID,
		OtherID:  "X-1",
		SchemeID: scheme.ID,
		Validity: domain.Validity{ValidStart: start, SourceID: src.ID},
	}}); err != nil {
		t.Fatalf("create correlation: %v", err)
	}

	row, err := repo.ResolveOpen(dbc, scheme.ID, "X-1")
	if err != nil || row == nil || row.MasterID != first.OrgID {
		t.Fatalf("ResolveOpen: %+v / %v", row, err)
	}
	if miss, err := repo.ResolveOpen(dbc, scheme.ID, "X-404"); err != nil || miss != nil {
		t.Fatalf("miss must be nil without error: %+v / %v", miss, err)
	}

	// Re-point the identifier to another master.
	time.Sleep(2 * time.Millisecond)
	if _, err := repo.Close(dbc, first.OrgID, "X-1", scheme.ID, src.ID, "re-pointed"); err != nil {
		t.Fatalf("close correlation: %v", err)
	}
	if _, err := repo.Create(dbc, []*domain.OrgCorrelation{{
		MasterID: second.OrgID,
		OtherID:  "X-1",
		SchemeID: scheme.ID,
		Validity: domain.Validity{ValidStart: repo.Now(), SourceID: src.ID},
	}}); err != nil {
		t.Fatalf("re-create correlation: %v", err)
	}

	row, err = repo.ResolveOpen(dbc, scheme.ID, "X-1")
	if err != nil || row == nil || row.MasterID != second.OrgID {
		t.Fatalf("ResolveOpen after re-point: %+v / %v", row, err)
	}
	row, err = repo.ResolveAsOf(dbc, scheme.ID, "X-1", start)
	if err != nil || row == nil || row.MasterID != first.OrgID {
		t.Fatalf("ResolveAsOf must see the original master: %+v / %v", row, err)
	}
}
