package aggregates_test

import (
	"context"
	"sync"
	"testing"

	dataagg "github.com/oriadata/orgmaster/internal/data/aggregates"
	"github.com/oriadata/orgmaster/internal/data/repos"
	repotest "github.com/oriadata/orgmaster/internal/data/repos/testutil"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
)

// Two feeds asserting the same foreign id for the first time both pass the
// open-row lock, since there is no row to lock yet. The partial unique index
// arbitrates, and the loser must surface as a correlation conflict with
// exactly one open row left behind.
func TestCorrelate_ConcurrentFirstAssertsSingleWinner(t *testing.T) {
	gdb := repotest.DB(t)
	ctx := context.Background()
	log := repotest.Logger(t)

	srcA := repotest.SeedSource(t, ctx, gdb, "race-feed-a")
	srcB := repotest.SeedSource(t, ctx, gdb, "race-feed-b")
	scheme := repotest.SeedScheme(t, ctx, gdb, "race-scheme")
	org := repotest.SeedOrg(t, ctx, gdb, "Race Target", srcA.ID)
	t.Cleanup(func() {
		gdb.Exec(`DELETE FROM master_external_org_other_id WHERE scheme = ?`, scheme.ID)
		gdb.Exec(`DELETE FROM master_external_org WHERE org_id = ?`, org.OrgID)
		gdb.Exec(`DELETE FROM master_other_id_scheme WHERE id = ?`, scheme.ID)
		gdb.Exec(`DELETE FROM master_data_source WHERE id IN ?`, []int64{srcA.ID, srcB.ID})
	})

	agg := dataagg.NewCorrelationAggregate(dataagg.CorrelationAggregateDeps{
		Base:         dataagg.BaseDeps{DB: gdb, Log: log},
		Orgs:         repos.NewOrgRepo(gdb, log),
		Correlations: repos.NewCorrelationRepo(gdb, log),
		Schemes:      repos.NewSchemeRepo(gdb, log),
	})

	start := make(chan struct{})
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, sourceID := range []int64{srcA.ID, srcB.ID} {
		wg.Add(1)
		go func(sourceID int64) {
			defer wg.Done()
			<-start
			_, err := agg.Correlate(ctx, domainagg.CorrelateInput{
				MasterID: org.OrgID,
				SchemeID: scheme.ID,
				OtherID:  "RACE-1",
				SourceID: sourceID,
			})
			results <- err
		}(sourceID)
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case domainagg.IsCode(err, domainagg.CodeCorrelationConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error from concurrent correlate: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one correlation conflict, got wins=%d conflicts=%d", wins, conflicts)
	}

	var openRows int64
	if err := gdb.Model(&domain.OrgCorrelation{}).
		Where("master_id = ? AND other_id = ? AND scheme = ? AND valid_end IS NULL", org.OrgID, "RACE-1", scheme.ID).
		Count(&openRows).Error; err != nil {
		t.Fatalf("count open rows: %v", err)
	}
	if openRows != 1 {
		t.Fatalf("expected a single open correlation row, found %d", openRows)
	}
}
