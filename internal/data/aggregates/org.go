package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

type OrgAggregateDeps struct {
	Base BaseDeps

	Orgs          repos.OrgRepo
	Aliases       repos.AliasRepo
	Relationships repos.RelationshipRepo
	Correlations  repos.CorrelationRepo
	Locations     repos.LocationRepo
	MergeEvents   repos.MergeEventRepo

	// Invalidator evicts resolve-cache entries for correlations that change
	// master during merge and split. Optional.
	Invalidator CorrelationInvalidator

	// Graph is optional; nil disables node projection.
	Graph GraphProjector
}

type orgAggregate struct {
	deps OrgAggregateDeps
}

func NewOrgAggregate(deps OrgAggregateDeps) domainagg.OrgAggregate {
	deps.Base = deps.Base.withDefaults()
	return &orgAggregate{deps: deps}
}

func (a *orgAggregate) Contract() domainagg.Contract {
	return domainagg.OrgAggregateContract
}

func (a *orgAggregate) repos() error {
	if a.deps.Orgs == nil || a.deps.Aliases == nil || a.deps.Relationships == nil ||
		a.deps.Correlations == nil || a.deps.Locations == nil || a.deps.MergeEvents == nil {
		return domainagg.NewError(domainagg.CodeInternal, "Master.Org", "org aggregate repos not configured", nil)
	}
	return nil
}

func (a *orgAggregate) Create(ctx context.Context, in domainagg.CreateOrgInput) (domainagg.CreateOrgResult, error) {
	const op = "Master.Org.Create"
	var out domainagg.CreateOrgResult

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org name", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if err := a.repos(); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		row := &domain.ExternalOrg{
			Name:     name,
			OrgFlags: in.Flags,
			Validity: domain.Validity{
				ValidStart:    a.deps.Orgs.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		created, err := a.deps.Orgs.CreateLineage(dbc, row)
		if err != nil {
			return err
		}
		out = domainagg.CreateOrgResult{OrgID: created.OrgID, ValidStart: created.ValidStart}
		return nil
	})
	if err == nil && a.deps.Graph != nil {
		a.deps.Graph.UpsertOrg(ctx, out.OrgID, name)
	}
	return out, err
}

func (a *orgAggregate) Rename(ctx context.Context, in domainagg.RenameOrgInput) (domainagg.RenameOrgResult, error) {
	const op = "Master.Org.Rename"
	var out domainagg.RenameOrgResult

	newName := strings.TrimSpace(in.NewName)
	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if newName == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing new name", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if err := a.repos(); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", in.OrgID), nil)
		}
		oldName := org.Name
		out = domainagg.RenameOrgResult{OrgID: in.OrgID, OldName: oldName}
		if oldName == newName {
			return nil
		}
		next := &domain.ExternalOrg{
			Name:     newName,
			OrgFlags: org.OrgFlags,
			Validity: domain.Validity{
				ValidStart:    a.deps.Orgs.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		if err := a.deps.Orgs.Supersede(dbc, in.OrgID, in.SourceID, in.Comment, next); err != nil {
			return err
		}
		if in.AliasOldName {
			aliasRow := &domain.OrgAlias{
				OrgID: in.OrgID,
				Alias: oldName,
				Lang:  strings.TrimSpace(in.OldNameLang),
				Validity: domain.Validity{
					ValidStart:    a.deps.Aliases.Now(),
					SourceID:      in.SourceID,
					SourceComment: optComment(in.Comment),
				},
			}
			if _, _, err := a.deps.Aliases.AssertIdempotent(dbc, aliasRow); err != nil {
				return err
			}
		}
		out.Renamed = true
		return nil
	})
	if err == nil && out.Renamed && a.deps.Graph != nil {
		a.deps.Graph.UpsertOrg(ctx, in.OrgID, newName)
	}
	return out, err
}

func (a *orgAggregate) SetFlags(ctx context.Context, in domainagg.SetOrgFlagsInput) (domainagg.SetOrgFlagsResult, error) {
	const op = "Master.Org.SetFlags"
	var out domainagg.SetOrgFlagsResult

	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if err := a.repos(); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", in.OrgID), nil)
		}
		out = domainagg.SetOrgFlagsResult{OrgID: in.OrgID}
		if org.OrgFlags == in.Flags {
			return nil
		}
		next := &domain.ExternalOrg{
			Name:     org.Name,
			OrgFlags: in.Flags,
			Validity: domain.Validity{
				ValidStart:    a.deps.Orgs.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		if err := a.deps.Orgs.Supersede(dbc, in.OrgID, in.SourceID, in.Comment, next); err != nil {
			return err
		}
		out.Superseded = true
		return nil
	})
	return out, err
}

func (a *orgAggregate) Dissolve(ctx context.Context, in domainagg.DissolveOrgInput) (domainagg.DissolveOrgResult, error) {
	const op = "Master.Org.Dissolve"
	var out domainagg.DissolveOrgResult

	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if err := a.repos(); err != nil {
		return out, err
	}

	var evict []*domain.OrgCorrelation
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.DissolveOrgResult{OrgID: in.OrgID}
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return nil
		}
		open, err := a.deps.Correlations.ListOpenByMaster(dbc, in.OrgID)
		if err != nil {
			return err
		}
		evict = open

		n, err := a.deps.Aliases.Close(dbc, in.OrgID, "*", "", in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out.AliasesClosed = int(n)
		n, err = a.deps.Relationships.CloseAllTouching(dbc, in.OrgID, in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out.RelationshipsClosed = int(n)
		n, err = a.deps.Correlations.Close(dbc, in.OrgID, "*", 0, in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out.CorrelationsClosed = int(n)
		n, err = a.deps.Locations.Close(dbc, in.OrgID, 0, in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out.LocationsClosed = int(n)
		if _, err := a.deps.Orgs.Close(dbc, in.OrgID, in.SourceID, in.Comment); err != nil {
			return err
		}
		out.Closed = true
		return nil
	})
	if err == nil && out.Closed {
		a.invalidate(ctx, evict)
		if a.deps.Graph != nil {
			a.deps.Graph.RemoveOrg(ctx, in.OrgID)
		}
	}
	return out, err
}

func (a *orgAggregate) Merge(ctx context.Context, in domainagg.MergeOrgsInput) (domainagg.MergeOrgsResult, error) {
	const op = "Master.Org.Merge"
	var out domainagg.MergeOrgsResult

	if in.WinnerID == 0 || in.LoserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing winner or loser id", nil)
	}
	if in.WinnerID == in.LoserID {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "winner and loser are the same org", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if err := a.repos(); err != nil {
		return out, err
	}

	var evict []*domain.OrgCorrelation
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.lockPair(dbc, op, in.WinnerID, in.LoserID); err != nil {
			return err
		}
		mergedAt := a.deps.Orgs.Now()
		closeComment := fmt.Sprintf("merged into org %d", in.WinnerID)
		if in.Comment != "" {
			closeComment = closeComment + ": " + in.Comment
		}
		out = domainagg.MergeOrgsResult{WinnerID: in.WinnerID, LoserID: in.LoserID, MergedAt: mergedAt}

		// Aliases: close on the loser, reopen on the winner at the merge
		// instant, keeping the original provenance on the copied row.
		aliases, err := a.deps.Aliases.ListOpenByOrg(dbc, in.LoserID)
		if err != nil {
			return err
		}
		for _, row := range aliases {
			if err := a.deps.Aliases.CloseRowByID(dbc, row.ID, in.SourceID, closeComment); err != nil {
				return err
			}
			moved := &domain.OrgAlias{
				OrgID: in.WinnerID,
				Alias: row.Alias,
				Lang:  row.Lang,
				Validity: domain.Validity{
					ValidStart:    mergedAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			created, _, err := a.deps.Aliases.AssertIdempotent(dbc, moved)
			if err != nil {
				return err
			}
			if created {
				out.AliasesMoved++
			}
		}

		// Relationships: re-point the loser end at the winner. Edges between
		// winner and loser would become reflexive, so they only expire.
		edges, err := a.deps.Relationships.OpenTouching(dbc, in.LoserID)
		if err != nil {
			return err
		}
		for _, row := range edges {
			if err := a.deps.Relationships.CloseRowByID(dbc, row.ID, in.SourceID, closeComment); err != nil {
				return err
			}
			ext1, ext2 := row.Ext1, row.Ext2
			if ext1 == in.LoserID {
				ext1 = in.WinnerID
			}
			if ext2 == in.LoserID {
				ext2 = in.WinnerID
			}
			if ext1 == ext2 {
				continue
			}
			other := ext1
			if other == in.WinnerID {
				other = ext2
			}
			otherOrg, err := a.deps.Orgs.OpenByOrgID(dbc, other)
			if err != nil {
				return err
			}
			if otherOrg == nil {
				return domainagg.NewError(domainagg.CodeDanglingReference, op,
					fmt.Sprintf("relationship %d references dissolved org %d", row.ID, other), nil)
			}
			moved := &domain.OrgRelationship{
				Ext1:      ext1,
				Ext2:      ext2,
				RelTypeID: row.RelTypeID,
				Validity: domain.Validity{
					ValidStart:    mergedAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			created, _, err := a.deps.Relationships.AssertIdempotent(dbc, moved)
			if err != nil {
				return err
			}
			if created {
				out.RelationshipsMoved++
			}
		}

		// Correlations: the external id now resolves to the winner.
		correlations, err := a.deps.Correlations.ListOpenByMaster(dbc, in.LoserID)
		if err != nil {
			return err
		}
		for _, row := range correlations {
			if err := a.deps.Correlations.CloseRowByID(dbc, row.ID, in.SourceID, closeComment); err != nil {
				return err
			}
			existing, err := a.deps.Correlations.LockOpenByTriple(dbc, in.WinnerID, row.OtherID, row.SchemeID)
			if err != nil {
				return err
			}
			if existing == nil {
				moved := &domain.OrgCorrelation{
					MasterID: in.WinnerID,
					OtherID:  row.OtherID,
					SchemeID: row.SchemeID,
					Validity: domain.Validity{
						ValidStart:    mergedAt,
						SourceID:      row.SourceID,
						SourceComment: row.SourceComment,
					},
				}
				if _, err := a.deps.Correlations.Create(dbc, []*domain.OrgCorrelation{moved}); err != nil {
					return err
				}
				out.CorrelationsMoved++
			}
			evict = append(evict, row)
		}

		// Locations follow the winner.
		locations, err := a.deps.Locations.ListOpenByOrg(dbc, in.LoserID)
		if err != nil {
			return err
		}
		for _, row := range locations {
			if err := a.deps.Locations.CloseRowByID(dbc, row.ID, in.SourceID, closeComment); err != nil {
				return err
			}
			moved := &domain.OrgLocation{
				OrgID:      in.WinnerID,
				PostcodeID: row.PostcodeID,
				Validity: domain.Validity{
					ValidStart:    mergedAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			created, _, err := a.deps.Locations.AssertIdempotent(dbc, moved)
			if err != nil {
				return err
			}
			if created {
				out.LocationsMoved++
			}
		}

		if _, err := a.deps.MergeEvents.Create(dbc, []*domain.MergeEvent{{
			WinnerID:      in.WinnerID,
			LoserID:       in.LoserID,
			MergedAt:      mergedAt,
			SourceID:      in.SourceID,
			SourceComment: optComment(in.Comment),
		}}); err != nil {
			return err
		}
		if _, err := a.deps.Orgs.Close(dbc, in.LoserID, in.SourceID, closeComment); err != nil {
			return err
		}
		return nil
	})
	if err == nil {
		a.invalidate(ctx, evict)
		if a.deps.Graph != nil {
			a.deps.Graph.RemoveOrg(ctx, in.LoserID)
		}
	}
	return out, err
}

func (a *orgAggregate) Split(ctx context.Context, in domainagg.SplitOrgInput) (domainagg.SplitOrgResult, error) {
	const op = "Master.Org.Split"
	var out domainagg.SplitOrgResult

	newName := strings.TrimSpace(in.NewName)
	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if newName == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing name for the split-off org", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if err := a.repos(); err != nil {
		return out, err
	}

	assigned := make(map[domainagg.FactKind]map[int64]bool, 4)
	for _, fa := range in.Assignments {
		if assigned[fa.Kind] == nil {
			assigned[fa.Kind] = make(map[int64]bool)
		}
		assigned[fa.Kind][fa.RowID] = fa.MoveToNew
	}

	var evict []*domain.OrgCorrelation
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", in.OrgID), nil)
		}
		event, err := a.deps.MergeEvents.LatestByWinner(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if event == nil {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op,
				fmt.Sprintf("org %d has no recorded merge to split", in.OrgID), nil)
		}
		mergedAt := event.MergedAt
		splitAt := a.deps.Orgs.Now()
		out = domainagg.SplitOrgResult{OrgID: in.OrgID, MergedAt: mergedAt}

		// Every fact asserted after the merge instant must be disambiguated
		// by the caller before anything moves.
		if err := a.checkSplitAmbiguity(dbc, op, in.OrgID, mergedAt, assigned); err != nil {
			return err
		}

		fresh := &domain.ExternalOrg{
			Name:     newName,
			OrgFlags: in.Flags,
			Validity: domain.Validity{
				ValidStart:    splitAt,
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		if _, err := a.deps.Orgs.CreateLineage(dbc, fresh); err != nil {
			return err
		}
		out.NewOrgID = fresh.OrgID
		moveComment := fmt.Sprintf("split from org %d", in.OrgID)

		moveAlias := func(row *domain.OrgAlias) error {
			if err := a.deps.Aliases.CloseRowByID(dbc, row.ID, in.SourceID, moveComment); err != nil {
				return err
			}
			moved := &domain.OrgAlias{
				OrgID: fresh.OrgID,
				Alias: row.Alias,
				Lang:  row.Lang,
				Validity: domain.Validity{
					ValidStart:    splitAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			if _, err := a.deps.Aliases.Create(dbc, []*domain.OrgAlias{moved}); err != nil {
				return err
			}
			out.AliasesMoved++
			return nil
		}
		moveRelationship := func(row *domain.OrgRelationship) error {
			if err := a.deps.Relationships.CloseRowByID(dbc, row.ID, in.SourceID, moveComment); err != nil {
				return err
			}
			ext1, ext2 := row.Ext1, row.Ext2
			if ext1 == in.OrgID {
				ext1 = fresh.OrgID
			}
			if ext2 == in.OrgID {
				ext2 = fresh.OrgID
			}
			moved := &domain.OrgRelationship{
				Ext1:      ext1,
				Ext2:      ext2,
				RelTypeID: row.RelTypeID,
				Validity: domain.Validity{
					ValidStart:    splitAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			if _, err := a.deps.Relationships.Create(dbc, []*domain.OrgRelationship{moved}); err != nil {
				return err
			}
			out.RelationshipsMoved++
			return nil
		}
		moveCorrelation := func(row *domain.OrgCorrelation) error {
			if err := a.deps.Correlations.CloseRowByID(dbc, row.ID, in.SourceID, moveComment); err != nil {
				return err
			}
			moved := &domain.OrgCorrelation{
				MasterID: fresh.OrgID,
				OtherID:  row.OtherID,
				SchemeID: row.SchemeID,
				Validity: domain.Validity{
					ValidStart:    splitAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			if _, err := a.deps.Correlations.Create(dbc, []*domain.OrgCorrelation{moved}); err != nil {
				return err
			}
			evict = append(evict, row)
			out.CorrelationsMoved++
			return nil
		}
		moveLocation := func(row *domain.OrgLocation) error {
			if err := a.deps.Locations.CloseRowByID(dbc, row.ID, in.SourceID, moveComment); err != nil {
				return err
			}
			moved := &domain.OrgLocation{
				OrgID:      fresh.OrgID,
				PostcodeID: row.PostcodeID,
				Validity: domain.Validity{
					ValidStart:    splitAt,
					SourceID:      row.SourceID,
					SourceComment: row.SourceComment,
				},
			}
			if _, err := a.deps.Locations.Create(dbc, []*domain.OrgLocation{moved}); err != nil {
				return err
			}
			out.LocationsMoved++
			return nil
		}

		// Facts re-pointed at the merge instant move back by default; an
		// explicit assignment can keep them with the merged org.
		shouldMove := func(kind domainagg.FactKind, rowID int64, def bool) bool {
			if decided, ok := assigned[kind][rowID]; ok {
				return decided
			}
			return def
		}

		atAliases, err := a.deps.Aliases.ListOpenStartedAt(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		afterAliases, err := a.deps.Aliases.ListOpenStartedAfter(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		for _, row := range atAliases {
			if shouldMove(domainagg.FactAlias, row.ID, true) {
				if err := moveAlias(row); err != nil {
					return err
				}
			}
		}
		for _, row := range afterAliases {
			if shouldMove(domainagg.FactAlias, row.ID, false) {
				if err := moveAlias(row); err != nil {
					return err
				}
			}
		}

		atEdges, err := a.deps.Relationships.ListOpenTouchingStartedAt(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		afterEdges, err := a.deps.Relationships.ListOpenTouchingStartedAfter(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		for _, row := range atEdges {
			if shouldMove(domainagg.FactRelationship, row.ID, true) {
				if err := moveRelationship(row); err != nil {
					return err
				}
			}
		}
		for _, row := range afterEdges {
			if shouldMove(domainagg.FactRelationship, row.ID, false) {
				if err := moveRelationship(row); err != nil {
					return err
				}
			}
		}

		atCorrelations, err := a.deps.Correlations.ListOpenStartedAt(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		afterCorrelations, err := a.deps.Correlations.ListOpenStartedAfter(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		for _, row := range atCorrelations {
			if shouldMove(domainagg.FactCorrelation, row.ID, true) {
				if err := moveCorrelation(row); err != nil {
					return err
				}
			}
		}
		for _, row := range afterCorrelations {
			if shouldMove(domainagg.FactCorrelation, row.ID, false) {
				if err := moveCorrelation(row); err != nil {
					return err
				}
			}
		}

		atLocations, err := a.deps.Locations.ListOpenStartedAt(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		afterLocations, err := a.deps.Locations.ListOpenStartedAfter(dbc, in.OrgID, mergedAt)
		if err != nil {
			return err
		}
		for _, row := range atLocations {
			if shouldMove(domainagg.FactLocation, row.ID, true) {
				if err := moveLocation(row); err != nil {
					return err
				}
			}
		}
		for _, row := range afterLocations {
			if shouldMove(domainagg.FactLocation, row.ID, false) {
				if err := moveLocation(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		a.invalidate(ctx, evict)
		if a.deps.Graph != nil {
			a.deps.Graph.UpsertOrg(ctx, out.NewOrgID, newName)
		}
	}
	return out, err
}

// checkSplitAmbiguity fails with CodeSplitAmbiguity when any open fact of
// the org was asserted strictly after the merge instant without an explicit
// assignment. The merge cannot tell which entity such facts belong to.
func (a *orgAggregate) checkSplitAmbiguity(dbc dbctx.Context, op string, orgID int64, mergedAt time.Time, assigned map[domainagg.FactKind]map[int64]bool) error {
	var unresolved []string
	note := func(kind domainagg.FactKind, id int64) {
		if _, ok := assigned[kind][id]; !ok {
			unresolved = append(unresolved, fmt.Sprintf("%s/%d", kind, id))
		}
	}

	aliases, err := a.deps.Aliases.ListOpenStartedAfter(dbc, orgID, mergedAt)
	if err != nil {
		return err
	}
	for _, row := range aliases {
		note(domainagg.FactAlias, row.ID)
	}
	edges, err := a.deps.Relationships.ListOpenTouchingStartedAfter(dbc, orgID, mergedAt)
	if err != nil {
		return err
	}
	for _, row := range edges {
		note(domainagg.FactRelationship, row.ID)
	}
	correlations, err := a.deps.Correlations.ListOpenStartedAfter(dbc, orgID, mergedAt)
	if err != nil {
		return err
	}
	for _, row := range correlations {
		note(domainagg.FactCorrelation, row.ID)
	}
	locations, err := a.deps.Locations.ListOpenStartedAfter(dbc, orgID, mergedAt)
	if err != nil {
		return err
	}
	for _, row := range locations {
		note(domainagg.FactLocation, row.ID)
	}

	if len(unresolved) > 0 {
		return domainagg.NewError(domainagg.CodeSplitAmbiguity, op,
			fmt.Sprintf("facts asserted after the merge need explicit assignment: %s", strings.Join(unresolved, ", ")), nil)
	}
	return nil
}

// lockPair locks both open org versions in id order so concurrent merges
// touching the same orgs cannot deadlock.
func (a *orgAggregate) lockPair(dbc dbctx.Context, op string, winnerID, loserID int64) error {
	first, second := winnerID, loserID
	if second < first {
		first, second = second, first
	}
	for _, id := range []int64{first, second} {
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, id)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", id), nil)
		}
	}
	return nil
}

func (a *orgAggregate) invalidate(ctx context.Context, rows []*domain.OrgCorrelation) {
	if a.deps.Invalidator == nil {
		return
	}
	for _, row := range rows {
		a.deps.Invalidator.InvalidateCorrelation(ctx, row.SchemeID, row.OtherID)
	}
}
