package aggregates

import "context"

var RelationshipAggregateContract = Contract{
	Name:             "Master.RelationshipAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Owns the (ext1, ext2, rel) single-open edge invariant; Neighbors/Walk reads stay on the relationship repo.",
}

// RelationshipAggregate owns edge assertion/retirement in the org graph.
type RelationshipAggregate interface {
	Aggregate

	// Link asserts a directed edge. Idempotent when an identical open edge
	// exists. Fails with CodeSelfRelationship when ext1 == ext2 and the
	// relationship type is not reflexive.
	Link(ctx context.Context, in LinkInput) (LinkResult, error)

	// Unlink closes an edge; silent success when nothing is open. Ext2All
	// closes every open edge touching Ext1 in either direction (used by
	// dissolve and merge).
	Unlink(ctx context.Context, in UnlinkInput) (UnlinkResult, error)
}

type LinkInput struct {
	Ext1      int64
	Ext2      int64
	RelTypeID int64
	SourceID  int64
	Comment   string
}

type LinkResult struct {
	EdgeID  int64
	Created bool
}

type UnlinkInput struct {
	Ext1      int64
	Ext2      int64
	Ext2All   bool // close all edges touching Ext1, ignoring Ext2/RelTypeID
	RelTypeID int64
	SourceID  int64
	Comment   string
}

type UnlinkResult struct {
	Closed int
}
