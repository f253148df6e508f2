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

type AliasAggregateDeps struct {
	Base BaseDeps

	Orgs    repos.OrgRepo
	Aliases repos.AliasRepo
}

type aliasAggregate struct {
	deps AliasAggregateDeps
}

func NewAliasAggregate(deps AliasAggregateDeps) domainagg.AliasAggregate {
	deps.Base = deps.Base.withDefaults()
	return &aliasAggregate{deps: deps}
}

func (a *aliasAggregate) Contract() domainagg.Contract {
	return domainagg.AliasAggregateContract
}

func (a *aliasAggregate) Add(ctx context.Context, in domainagg.AddAliasInput) (domainagg.AddAliasResult, error) {
	const op = "Master.Alias.Add"
	var out domainagg.AddAliasResult

	alias := strings.TrimSpace(in.Alias)
	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if alias == "" || alias == "*" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing alias text", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Orgs == nil || a.deps.Aliases == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "alias aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		org, err := a.deps.Orgs.LockOpenByOrgID(dbc, in.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", in.OrgID), nil)
		}

		row := &domain.OrgAlias{
			OrgID: in.OrgID,
			Alias: alias,
			Lang:  strings.TrimSpace(in.Lang),
			Validity: domain.Validity{
				ValidStart:    a.deps.Aliases.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		created, existing, err := a.deps.Aliases.AssertIdempotent(dbc, row)
		if err != nil {
			return err
		}
		out = domainagg.AddAliasResult{
			OrgID:   in.OrgID,
			AliasID: existing.ID,
			Created: created,
		}
		return nil
	})
	return out, err
}

func (a *aliasAggregate) Retire(ctx context.Context, in domainagg.RetireAliasInput) (domainagg.RetireAliasResult, error) {
	const op = "Master.Alias.Retire"
	var out domainagg.RetireAliasResult

	alias := strings.TrimSpace(in.Alias)
	if in.OrgID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if alias == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing alias text", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Aliases == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "alias repo not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		closed, err := a.deps.Aliases.Close(dbc, in.OrgID, alias, strings.TrimSpace(in.Lang), in.SourceID, in.Comment)
		if err != nil {
			return err
		}
		out = domainagg.RetireAliasResult{OrgID: in.OrgID, Closed: int(closed)}
		return nil
	})
	return out, err
}
