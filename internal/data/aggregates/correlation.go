package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

// CorrelationInvalidator is notified when an open correlation changes so the
// resolve cache can drop the affected (scheme, other id) entry. The redis
// client provides the production implementation.
type CorrelationInvalidator interface {
	InvalidateCorrelation(ctx context.Context, schemeID int64, otherID string)
}

type CorrelationAggregateDeps struct {
	Base BaseDeps

	Orgs         repos.OrgRepo
	Correlations repos.CorrelationRepo
	Schemes      repos.SchemeRepo

	// Cache is optional; nil disables invalidation.
	Cache CorrelationInvalidator
}

type correlationAggregate struct {
	deps CorrelationAggregateDeps
}

func NewCorrelationAggregate(deps CorrelationAggregateDeps) domainagg.CorrelationAggregate {
	deps.Base = deps.Base.withDefaults()
	return &correlationAggregate{deps: deps}
}

func (a *correlationAggregate) Contract() domainagg.Contract {
	return domainagg.CorrelationAggregateContract
}

func (a *correlationAggregate) Correlate(ctx context.Context, in domainagg.CorrelateInput) (domainagg.CorrelateResult, error) {
	const op = "Master.Correlation.Correlate"
	var out domainagg.CorrelateResult

	otherID := strings.TrimSpace(in.OtherID)
	if in.MasterID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing master id", nil)
	}
	if otherID == "" || otherID == "*" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing other id", nil)
	}
	if in.SchemeID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing scheme", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Orgs == nil || a.deps.Correlations == nil || a.deps.Schemes == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "correlation aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		scheme, err := a.deps.Schemes.GetByID(dbc, in.SchemeID)
		if err != nil {
			return err
		}
		if scheme == nil {
			return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown scheme: %d", in.SchemeID), nil)
		}
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.MasterID)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", in.MasterID), nil)
		}

		existing, err := a.deps.Correlations.LockOpenByTriple(dbc, in.MasterID, otherID, in.SchemeID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.SourceID == in.SourceID {
				// Same assertion from the same source: idempotent.
				out = domainagg.CorrelateResult{CorrelationID: existing.ID}
				return nil
			}
			if !in.Override {
				return domainagg.NewError(domainagg.CodeCorrelationConflict, op,
					fmt.Sprintf("correlation (%d, %q, %d) already open from source %d", in.MasterID, otherID, in.SchemeID, existing.SourceID), nil)
			}
			if err := a.deps.Correlations.CloseRowByID(dbc, existing.ID, in.SourceID,
				fmt.Sprintf("superseded by source %d", in.SourceID)); err != nil {
				return err
			}
			out.Superseded = true
		}

		row := &domain.OrgCorrelation{
			MasterID: in.MasterID,
			OtherID:  otherID,
			SchemeID: in.SchemeID,
			Validity: domain.Validity{
				ValidStart:    a.deps.Correlations.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		if _, err := a.deps.Correlations.Create(dbc, []*domain.OrgCorrelation{row}); err != nil {
			// The open-row lock cannot serialize two writers when neither row
			// exists yet; the partial unique index arbitrates instead, and the
			// loser of that race is a correlation conflict, not a generic one.
			if isUniqueViolation(err, "uq_open_org_other_id") {
				return domainagg.NewError(domainagg.CodeCorrelationConflict, op,
					fmt.Sprintf("correlation (%d, %q, %d) asserted concurrently", in.MasterID, otherID, in.SchemeID), err)
			}
			return err
		}
		out.CorrelationID = row.ID
		out.Created = true
		return nil
	})
	if err == nil && a.deps.Cache != nil && out.Created {
		a.deps.Cache.InvalidateCorrelation(ctx, in.SchemeID, otherID)
	}
	return out, err
}

func (a *correlationAggregate) Retire(ctx context.Context, in domainagg.RetireCorrelationInput) (domainagg.RetireCorrelationResult, error) {
	const op = "Master.Correlation.Retire"
	var out domainagg.RetireCorrelationResult

	otherID := strings.TrimSpace(in.OtherID)
	if in.MasterID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing master id", nil)
	}
	if otherID == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing other id", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Correlations == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "correlation repo not configured", nil)
	}

	var closedRows []*domain.OrgCorrelation
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if otherID == "*" {
			closedRows, _ = a.deps.Correlations.ListOpenByMaster(dbc, in.MasterID)
		}
		closed, err := a.deps.Correlations.Close(dbc, in.MasterID, otherID, in.SchemeID, in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out = domainagg.RetireCorrelationResult{Closed: int(closed)}
		return nil
	})
	if err == nil && a.deps.Cache != nil && out.Closed > 0 {
		if otherID == "*" {
			for _, row := range closedRows {
				a.deps.Cache.InvalidateCorrelation(ctx, row.SchemeID, row.OtherID)
			}
		} else {
			a.deps.Cache.InvalidateCorrelation(ctx, in.SchemeID, otherID)
		}
	}
	return out, err
}
