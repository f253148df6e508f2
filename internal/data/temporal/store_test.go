package temporal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oriadata/orgmaster/internal/data/repos/testutil"
	"github.com/oriadata/orgmaster/internal/data/temporal"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

// The store tests run against a real Postgres because the semantics under
// test (FOR UPDATE, partial unique indexes, half-open windows) are the
// database's, not the ORM's. Set TEST_POSTGRES_DSN to enable.

func aliasKey(orgID int64, alias, lang string) temporal.Key {
	return temporal.Key{"external_org": orgID, "alias": alias, "lang": lang}
}

func newAliasRow(orgID int64, alias string, at time.Time, sourceID int64) *domain.OrgAlias {
	return &domain.OrgAlias{
		OrgID: orgID,
		Alias: alias,
		Validity: domain.Validity{
			ValidStart: at,
			SourceID:   sourceID,
		},
	}
}

func TestStoreAssert_OneOpenRowPerKey(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "store-assert-src")
	org := testutil.SeedOrg(t, ctx, tx, "Assert Co", src.ID)

	store := temporal.NewStore[domain.OrgAlias](gdb, testutil.Logger(t))
	key := aliasKey(org.OrgID, "AC", "")

	if err := store.Assert(dbc, key, newAliasRow(org.OrgID, "AC", store.Now(), src.ID)); err != nil {
		t.Fatalf("first assert: %v", err)
	}
	err := store.Assert(dbc, key, newAliasRow(org.OrgID, "AC", store.Now(), src.ID))
	if !errors.Is(err, temporal.ErrOpenFactExists) {
		t.Fatalf("second assert: want ErrOpenFactExists, got %v", err)
	}

	created, existing, err := store.AssertIdempotent(dbc, key, newAliasRow(org.OrgID, "AC", store.Now(), src.ID))
	if err != nil || created {
		t.Fatalf("idempotent assert over open row: created=%v err=%v", created, err)
	}
	if existing == nil || existing.Alias != "AC" {
		t.Fatalf("idempotent assert must return the open row, got %+v", existing)
	}
}

func TestStoreClose_StampsProvenance(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "store-close-src")
	closer := testutil.SeedSource(t, ctx, tx, "store-close-closer")
	org := testutil.SeedOrg(t, ctx, tx, "Close Co", src.ID)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := temporal.NewStore[domain.OrgAlias](gdb, testutil.Logger(t)).
		WithClock(func() time.Time { return clock })
	key := aliasKey(org.OrgID, "CC", "")

	if err := store.Assert(dbc, key, newAliasRow(org.OrgID, "CC", store.Now(), src.ID)); err != nil {
		t.Fatalf("assert: %v", err)
	}

	clock = base.Add(time.Hour)
	n, err := store.Close(dbc, key, closer.ID, "no longer used")
	if err != nil || n != 1 {
		t.Fatalf("close: n=%d err=%v", n, err)
	}

	rows, err := store.History(dbc, key)
	if err != nil || len(rows) != 1 {
		t.Fatalf("history: %d rows / %v", len(rows), err)
	}
	row := rows[0]
	if row.ValidEnd == nil || !row.ValidEnd.Equal(clock) {
		t.Fatalf("valid_end not stamped from the clock: %+v", row.ValidEnd)
	}
	if row.SourceID != closer.ID {
		t.Fatalf("close must overwrite provenance, source=%d", row.SourceID)
	}
	if row.SourceComment == nil || *row.SourceComment != "no longer used" {
		t.Fatalf("close comment not recorded: %+v", row.SourceComment)
	}

	// Closing an already-closed key is a silent no-op.
	n, err = store.Close(dbc, key, closer.ID, "")
	if err != nil || n != 0 {
		t.Fatalf("re-close: n=%d err=%v", n, err)
	}
}

func TestStoreSupersede_RequiresTransaction(t *testing.T) {
	gdb := testutil.DB(t)
	store := temporal.NewStore[domain.OrgAlias](gdb, testutil.Logger(t))

	err := store.Supersede(dbctx.Context{Ctx: context.Background()}, aliasKey(1, "x", ""), 1, "", &domain.OrgAlias{})
	if !errors.Is(err, temporal.ErrTxRequired) {
		t.Fatalf("want ErrTxRequired, got %v", err)
	}
}

func TestStoreSupersede_SwapsTheOpenRow(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "store-supersede-src")
	org := testutil.SeedOrg(t, ctx, tx, "Supersede Co", src.ID)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := temporal.NewStore[domain.OrgAlias](gdb, testutil.Logger(t)).
		WithClock(func() time.Time { return clock })
	key := aliasKey(org.OrgID, "SC", "")

	if err := store.Assert(dbc, key, newAliasRow(org.OrgID, "SC", store.Now(), src.ID)); err != nil {
		t.Fatalf("assert: %v", err)
	}
	clock = base.Add(time.Hour)
	if err := store.Supersede(dbc, key, src.ID, "revised", newAliasRow(org.OrgID, "SC", clock, src.ID)); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	open, err := store.Open(dbc, key)
	if err != nil || len(open) != 1 {
		t.Fatalf("open after supersede: %d rows / %v", len(open), err)
	}
	if !open[0].ValidStart.Equal(clock) {
		t.Fatalf("replacement row not stamped at the supersede instant: %+v", open[0].ValidStart)
	}
	history, err := store.History(dbc, key)
	if err != nil || len(history) != 2 {
		t.Fatalf("history after supersede: %d rows / %v", len(history), err)
	}
	if history[0].ValidEnd == nil || !history[0].ValidEnd.Equal(history[1].ValidStart) {
		t.Fatalf("windows must abut: %+v then %+v", history[0].ValidEnd, history[1].ValidStart)
	}
}

func TestStoreAsOf_HalfOpenWindow(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	src := testutil.SeedSource(t, ctx, tx, "store-asof-src")
	org := testutil.SeedOrg(t, ctx, tx, "AsOf Co", src.ID)

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clock := start
	store := temporal.NewStore[domain.OrgAlias](gdb, testutil.Logger(t)).
		WithClock(func() time.Time { return clock })
	key := aliasKey(org.OrgID, "AO", "")

	if err := store.Assert(dbc, key, newAliasRow(org.OrgID, "AO", start, src.ID)); err != nil {
		t.Fatalf("assert: %v", err)
	}
	clock = end
	if _, err := store.Close(dbc, key, src.ID, ""); err != nil {
		t.Fatalf("close: %v", err)
	}

	cases := []struct {
		at      time.Time
		visible bool
	}{
		{start.Add(-time.Second), false},
		{start, true}, // start is inclusive
		{end.Add(-time.Second), true},
		{end, false}, // end is exclusive
	}
	for _, tc := range cases {
		rows, err := store.AsOf(dbc, key, tc.at)
		if err != nil {
			t.Fatalf("as-of %v: %v", tc.at, err)
		}
		if got := len(rows) == 1; got != tc.visible {
			t.Fatalf("as-of %v: visible=%v, want %v", tc.at, got, tc.visible)
		}
	}
}
