package aggregates

import "context"

var LocationAggregateContract = Contract{
	Name:             "Master.LocationAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Owns the (org, postcode) single-open invariant.",
}

// LocationAggregate owns org-to-postcode links.
type LocationAggregate interface {
	Aggregate

	// Add links an org to a postcode id. Idempotent on an identical open link.
	Add(ctx context.Context, in AddLocationInput) (AddLocationResult, error)

	// Remove closes a link; silent success when nothing is open.
	// PostcodeAll closes every open location link of the org.
	Remove(ctx context.Context, in RemoveLocationInput) (RemoveLocationResult, error)
}

type AddLocationInput struct {
	OrgID      int64
	PostcodeID int64
	SourceID   int64
	Comment    string
}

type AddLocationResult struct {
	LocationID int64
	Created    bool
}

type RemoveLocationInput struct {
	OrgID       int64
	PostcodeID  int64
	PostcodeAll bool
	SourceID    int64
	Comment     string
}

type RemoveLocationResult struct {
	Closed int
}
