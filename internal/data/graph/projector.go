package graph

import (
	"context"

	"github.com/oriadata/orgmaster/internal/platform/neo4jdb"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// Projector mirrors the open slice of the relationship graph into Neo4j so
// analysts can run Cypher over current org structure. The relational store
// stays authoritative; the projection is best effort and rebuilt from the
// open rows at any time. A nil client disables every method.
type Projector struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewProjector(client *neo4jdb.Client, baseLog *logger.Logger) *Projector {
	return &Projector{client: client, log: baseLog.With("service", "GraphProjector")}
}

func (p *Projector) Enabled() bool { return p != nil && p.client != nil }

func (p *Projector) UpsertOrg(ctx context.Context, orgID int64, name string) {
	if !p.Enabled() {
		return
	}
	err := p.client.Run(ctx,
		`MERGE (o:Org {org_id: $id}) SET o.name = $name`,
		map[string]any{"id": orgID, "name": name})
	if err != nil {
		p.log.Warn("graph upsert org failed", "org_id", orgID, "error", err)
	}
}

func (p *Projector) RemoveOrg(ctx context.Context, orgID int64) {
	if !p.Enabled() {
		return
	}
	err := p.client.Run(ctx,
		`MATCH (o:Org {org_id: $id}) DETACH DELETE o`,
		map[string]any{"id": orgID})
	if err != nil {
		p.log.Warn("graph remove org failed", "org_id", orgID, "error", err)
	}
}

func (p *Projector) UpsertEdge(ctx context.Context, ext1, ext2 int64, relName string) {
	if !p.Enabled() {
		return
	}
	err := p.client.Run(ctx,
		`MERGE (a:Org {org_id: $a})
		 MERGE (b:Org {org_id: $b})
		 MERGE (a)-[r:RELATED {rel: $rel}]->(b)`,
		map[string]any{"a": ext1, "b": ext2, "rel": relName})
	if err != nil {
		p.log.Warn("graph upsert edge failed", "ext1", ext1, "ext2", ext2, "error", err)
	}
}

func (p *Projector) RemoveEdge(ctx context.Context, ext1, ext2 int64, relName string) {
	if !p.Enabled() {
		return
	}
	err := p.client.Run(ctx,
		`MATCH (a:Org {org_id: $a})-[r:RELATED {rel: $rel}]->(b:Org {org_id: $b}) DELETE r`,
		map[string]any{"a": ext1, "b": ext2, "rel": relName})
	if err != nil {
		p.log.Warn("graph remove edge failed", "ext1", ext1, "ext2", ext2, "error", err)
	}
}

func (p *Projector) RemoveEdgesOf(ctx context.Context, orgID int64) {
	if !p.Enabled() {
		return
	}
	err := p.client.Run(ctx,
		`MATCH (o:Org {org_id: $id})-[r:RELATED]-() DELETE r`,
		map[string]any{"id": orgID})
	if err != nil {
		p.log.Warn("graph remove edges failed", "org_id", orgID, "error", err)
	}
}
