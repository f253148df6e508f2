package aggregates

import (
	"context"
	"fmt"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

// GraphProjector mirrors org nodes and open edges into an external graph
// store. All methods are best effort; a nil projector disables them.
type GraphProjector interface {
	UpsertOrg(ctx context.Context, orgID int64, name string)
	RemoveOrg(ctx context.Context, orgID int64)
	UpsertEdge(ctx context.Context, ext1, ext2 int64, relName string)
	RemoveEdge(ctx context.Context, ext1, ext2 int64, relName string)
	RemoveEdgesOf(ctx context.Context, orgID int64)
}

type RelationshipAggregateDeps struct {
	Base BaseDeps

	Orgs          repos.OrgRepo
	Relationships repos.RelationshipRepo
	RelTypes      repos.RelationshipTypeRepo

	// Graph is optional; nil disables projection.
	Graph GraphProjector
}

type relationshipAggregate struct {
	deps RelationshipAggregateDeps
}

func NewRelationshipAggregate(deps RelationshipAggregateDeps) domainagg.RelationshipAggregate {
	deps.Base = deps.Base.withDefaults()
	return &relationshipAggregate{deps: deps}
}

func (a *relationshipAggregate) Contract() domainagg.Contract {
	return domainagg.RelationshipAggregateContract
}

func (a *relationshipAggregate) Link(ctx context.Context, in domainagg.LinkInput) (domainagg.LinkResult, error) {
	const op = "Master.Relationship.Link"
	var out domainagg.LinkResult

	if in.Ext1 == 0 || in.Ext2 == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org ids", nil)
	}
	if in.RelTypeID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing relationship type", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Orgs == nil || a.deps.Relationships == nil || a.deps.RelTypes == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "relationship aggregate repos not configured", nil)
	}

	var relTypeName string
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		relType, err := a.deps.RelTypes.GetByID(dbc, in.RelTypeID)
		if err != nil {
			return err
		}
		if relType == nil {
			return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown relationship type: %d", in.RelTypeID), nil)
		}
		relTypeName = relType.Name
		if in.Ext1 == in.Ext2 && !relType.Reflexive {
			return domainagg.NewError(domainagg.CodeSelfRelationship, op,
				fmt.Sprintf("relationship type %q does not permit reflexive edges", relType.Name), nil)
		}

		for _, orgID := range []int64{in.Ext1, in.Ext2} {
			org, err := a.deps.Orgs.LockOpenByOrgID(dbc, orgID)
			if err != nil {
				return err
			}
			if org == nil {
				return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no open external org: %d", orgID), nil)
			}
			if in.Ext1 == in.Ext2 {
				break
			}
		}

		row := &domain.OrgRelationship{
			Ext1:      in.Ext1,
			Ext2:      in.Ext2,
			RelTypeID: in.RelTypeID,
			Validity: domain.Validity{
				ValidStart:    a.deps.Relationships.Now(),
				SourceID:      in.SourceID,
				SourceComment: optComment(in.Comment),
			},
		}
		created, existing, err := a.deps.Relationships.AssertIdempotent(dbc, row)
		if err != nil {
			return err
		}
		out = domainagg.LinkResult{EdgeID: existing.ID, Created: created}
		return nil
	})
	if err == nil && out.Created && a.deps.Graph != nil {
		a.deps.Graph.UpsertEdge(ctx, in.Ext1, in.Ext2, relTypeName)
	}
	return out, err
}

func (a *relationshipAggregate) Unlink(ctx context.Context, in domainagg.UnlinkInput) (domainagg.UnlinkResult, error) {
	const op = "Master.Relationship.Unlink"
	var out domainagg.UnlinkResult

	if in.Ext1 == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org id", nil)
	}
	if !in.Ext2All && (in.Ext2 == 0 || in.RelTypeID == 0) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing edge key", nil)
	}
	if in.SourceID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if a.deps.Relationships == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "relationship repo not configured", nil)
	}

	var relTypeName string
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		var closed int64
		var err error
		if in.Ext2All {
			closed, err = a.deps.Relationships.CloseAllTouching(dbc, in.Ext1, in.SourceID, in.Comment)
		} else {
			if a.deps.RelTypes != nil {
				relType, rerr := a.deps.RelTypes.GetByID(dbc, in.RelTypeID)
				if rerr != nil {
					return rerr
				}
				if relType != nil {
					relTypeName = relType.Name
				}
			}
			closed, err = a.deps.Relationships.Close(dbc, in.Ext1, in.Ext2, in.RelTypeID, in.SourceID, in.Comment)
		}
		if err != nil {
			return err
		}
		out = domainagg.UnlinkResult{Closed: int(closed)}
		return nil
	})
	if err == nil && out.Closed > 0 && a.deps.Graph != nil {
		if in.Ext2All {
			a.deps.Graph.RemoveEdgesOf(ctx, in.Ext1)
		} else {
			a.deps.Graph.RemoveEdge(ctx, in.Ext1, in.Ext2, relTypeName)
		}
	}
	return out, err
}
