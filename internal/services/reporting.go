package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// ResolveCache is the read-through cache over Resolve. Implemented by the
// redis client; nil means uncached.
type ResolveCache interface {
	Get(ctx context.Context, schemeID int64, otherID string) (int64, bool)
	Set(ctx context.Context, schemeID int64, otherID string, masterID int64)
}

// NeighborEdge is one edge of Neighbors, labeled from the org's point of
// view: the forward label when the org is ext1, the inverse label when ext2.
type NeighborEdge struct {
	EdgeID     int64            `json:"edge_id"`
	OtherOrgID int64            `json:"other_org_id"`
	RelTypeID  int64            `json:"rel_type_id"`
	RelType    string           `json:"rel_type"`
	Label      string           `json:"label"`
	Direction  domain.Direction `json:"direction"`
	ValidStart time.Time        `json:"valid_start"`
}

// WalkStep is one org reached during a bounded-depth traversal.
type WalkStep struct {
	OrgID     int64 `json:"org_id"`
	Depth     int   `json:"depth"`
	ViaEdgeID int64 `json:"via_edge_id,omitempty"`
}

// ReportingService is the read side of the master: point-in-time org views,
// alias/correlation/location listings, graph traversal, and resolution of
// foreign ids to master orgs.
type ReportingService interface {
	Get(ctx context.Context, orgID int64) (*domain.ExternalOrg, error)
	GetAsOf(ctx context.Context, orgID int64, at time.Time) (*domain.ExternalOrg, error)
	History(ctx context.Context, orgID int64) ([]*domain.ExternalOrg, error)

	AliasesOf(ctx context.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error)
	CorrelationsOf(ctx context.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error)
	LocationsOf(ctx context.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error)
	MergeHistory(ctx context.Context, orgID int64) ([]*domain.MergeEvent, error)

	Neighbors(ctx context.Context, orgID int64, relTypeID int64, dir domain.Direction, at time.Time) ([]NeighborEdge, error)
	Walk(ctx context.Context, orgID int64, relTypeID int64, dir domain.Direction, maxDepth int, at time.Time) ([]WalkStep, error)

	// Resolve maps (scheme, other id) to the master org id. A zero result
	// with nil error means no correlation exists; callers treat that as a
	// normal miss, not a failure.
	Resolve(ctx context.Context, schemeID int64, otherID string, at time.Time) (int64, error)
}

type reportingService struct {
	db    *gorm.DB
	log   *logger.Logger
	cache ResolveCache

	orgs          repos.OrgRepo
	aliases       repos.AliasRepo
	relationships repos.RelationshipRepo
	correlations  repos.CorrelationRepo
	locations     repos.LocationRepo
	mergeEvents   repos.MergeEventRepo
	relTypes      repos.RelationshipTypeRepo
}

func NewReportingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cache ResolveCache,
	orgs repos.OrgRepo,
	aliases repos.AliasRepo,
	relationships repos.RelationshipRepo,
	correlations repos.CorrelationRepo,
	locations repos.LocationRepo,
	mergeEvents repos.MergeEventRepo,
	relTypes repos.RelationshipTypeRepo,
) ReportingService {
	return &reportingService{
		db:            db,
		log:           baseLog.With("service", "ReportingService"),
		cache:         cache,
		orgs:          orgs,
		aliases:       aliases,
		relationships: relationships,
		correlations:  correlations,
		locations:     locations,
		mergeEvents:   mergeEvents,
		relTypes:      relTypes,
	}
}

func (s *reportingService) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

func (s *reportingService) Get(ctx context.Context, orgID int64) (*domain.ExternalOrg, error) {
	return s.orgs.OpenByOrgID(s.dbc(ctx), orgID)
}

func (s *reportingService) GetAsOf(ctx context.Context, orgID int64, at time.Time) (*domain.ExternalOrg, error) {
	return s.orgs.AsOfByOrgID(s.dbc(ctx), orgID, at)
}

func (s *reportingService) History(ctx context.Context, orgID int64) ([]*domain.ExternalOrg, error) {
	return s.orgs.History(s.dbc(ctx), orgID)
}

func (s *reportingService) AliasesOf(ctx context.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	if at.IsZero() {
		return s.aliases.ListOpenByOrg(s.dbc(ctx), orgID)
	}
	return s.aliases.ListAsOfByOrg(s.dbc(ctx), orgID, at)
}

func (s *reportingService) CorrelationsOf(ctx context.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	if at.IsZero() {
		return s.correlations.ListOpenByMaster(s.dbc(ctx), masterID)
	}
	return s.correlations.ListAsOfByMaster(s.dbc(ctx), masterID, at)
}

func (s *reportingService) LocationsOf(ctx context.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	if at.IsZero() {
		return s.locations.ListOpenByOrg(s.dbc(ctx), orgID)
	}
	return s.locations.ListAsOfByOrg(s.dbc(ctx), orgID, at)
}

func (s *reportingService) MergeHistory(ctx context.Context, orgID int64) ([]*domain.MergeEvent, error) {
	return s.mergeEvents.ListByOrg(s.dbc(ctx), orgID)
}

func (s *reportingService) Neighbors(ctx context.Context, orgID int64, relTypeID int64, dir domain.Direction, at time.Time) ([]NeighborEdge, error) {
	const op = "Reporting.Neighbors"
	if !domain.ValidDirection(dir) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid direction: %s", dir), nil)
	}
	if at.IsZero() {
		at = s.relationships.Now()
	}

	rows, err := s.relationships.EdgesOf(s.dbc(ctx), orgID, relTypeID, dir, at)
	if err != nil {
		return nil, err
	}

	labels := map[int64]*domain.RelationshipType{}
	out := make([]NeighborEdge, 0, len(rows))
	for _, row := range rows {
		rt, ok := labels[row.RelTypeID]
		if !ok {
			rt, err = s.relTypes.GetByID(s.dbc(ctx), row.RelTypeID)
			if err != nil {
				return nil, err
			}
			labels[row.RelTypeID] = rt
		}
		edge := NeighborEdge{
			EdgeID:     row.ID,
			RelTypeID:  row.RelTypeID,
			ValidStart: row.ValidStart,
		}
		if row.Ext1 == orgID {
			edge.OtherOrgID = row.Ext2
			edge.Direction = domain.DirectionForward
		} else {
			edge.OtherOrgID = row.Ext1
			edge.Direction = domain.DirectionInverse
		}
		if rt != nil {
			edge.RelType = rt.Name
			if edge.Direction == domain.DirectionForward {
				edge.Label = rt.ForwardLabel
			} else {
				edge.Label = rt.InverseLabel
			}
		}
		out = append(out, edge)
	}
	return out, nil
}

func (s *reportingService) Walk(ctx context.Context, orgID int64, relTypeID int64, dir domain.Direction, maxDepth int, at time.Time) ([]WalkStep, error) {
	const op = "Reporting.Walk"
	if !domain.ValidDirection(dir) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid direction: %s", dir), nil)
	}
	if maxDepth < 1 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "maxDepth must be at least 1", nil)
	}
	if at.IsZero() {
		at = s.relationships.Now()
	}

	// Breadth-first over as-of edges. The graph may be cyclic, so each org
	// appears once, at its shortest depth.
	visited := map[int64]bool{orgID: true}
	steps := []WalkStep{{OrgID: orgID, Depth: 0}}
	frontier := []int64{orgID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			rows, err := s.relationships.EdgesOf(s.dbc(ctx), id, relTypeID, dir, at)
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				other := row.Ext2
				if row.Ext2 == id {
					other = row.Ext1
				}
				if dir == domain.DirectionForward && row.Ext1 != id {
					continue
				}
				if dir == domain.DirectionInverse && row.Ext2 != id {
					continue
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				steps = append(steps, WalkStep{OrgID: other, Depth: depth, ViaEdgeID: row.ID})
				next = append(next, other)
			}
		}
		frontier = next
	}
	return steps, nil
}

func (s *reportingService) Resolve(ctx context.Context, schemeID int64, otherID string, at time.Time) (int64, error) {
	current := at.IsZero()
	if current && s.cache != nil {
		if id, ok := s.cache.Get(ctx, schemeID, otherID); ok {
			return id, nil
		}
	}

	var row *domain.OrgCorrelation
	var err error
	if current {
		row, err = s.correlations.ResolveOpen(s.dbc(ctx), schemeID, otherID)
	} else {
		row, err = s.correlations.ResolveAsOf(s.dbc(ctx), schemeID, otherID, at)
	}
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	if current && s.cache != nil {
		s.cache.Set(ctx, schemeID, otherID, row.MasterID)
	}
	return row.MasterID, nil
}
