package aggregates

import (
	"context"
	"fmt"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

type LocationAggregateDeps struct {
	Base BaseDeps

	Orgs      repos.OrgRepo
	Locations repos.LocationRepo
	Postcodes repos.PostcodeRepo
}

type locationAggregate struct {
	deps LocationAggregateDeps
}

func NewLocationAggregate(deps LocationAggregateDeps) domainagg.LocationAggregate {
	deps.Base = deps.Base.withDefaults()
	return &locationAggregate{deps: deps}
}

func (a *locationAggregate) Contract() domainagg.Contract {
	return domainagg.LocationAggregateContract
}

func (a *locationAggregate) Add(ctx context.Context, in domainagg.AddLocationInput) (domainagg.AddLocationResult, error) {
	const op = "Master.Location.Add"
	var out domainagg.AddLocationResult

	if in.OrgID == 0 || in.PostcodeID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org or postcode id", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Orgs == nil || a.deps.Locations == nil || a.deps.Postcodes == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "location aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", in.OrgID), nil)
		}
		pc, err := a.deps.Postcodes.GetByID(dbc, in.PostcodeID)
		if err != nil {
			return err
		}
		if pc == nil {
			return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown postcode id: %d", in.PostcodeID), nil)
		}

		row := &domain.OrgLocation{
			OrgID:      in.OrgID,
			PostcodeID: in.PostcodeID,
			Validity: domain.Validity{
				ValidStart:    a.deps.Locations.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		created, existing, err := a.deps.Locations.AssertIdempotent(dbc, row)
		if err != nil {
			return err
		}
		out = domainagg.AddLocationResult{LocationID: existing.ID, Created: created}
		return nil
	})
	return out, err
}

func (a *locationAggregate) Remove(ctx context.Context, in domainagg.RemoveLocationInput) (domainagg.RemoveLocationResult, error) {
	const op = "Master.Location.Remove"
	var out domainagg.RemoveLocationResult

	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if !in.PostcodeAll && in.PostcodeID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing postcode id", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Locations == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "location repo not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		postcodeID := in.PostcodeID
		if in.PostcodeAll {
			postcodeID = 0
		}
		closed, err := a.deps.Locations.Close(dbc, in.OrgID, postcodeID, in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out = domainagg.RemoveLocationResult{Closed: int(closed)}
		return nil
	})
	return out, err
}
