package aggregates

import "context"

var CorrelationAggregateContract = Contract{
	Name:             "Master.CorrelationAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Owns the (master_id, other_id, scheme) single-open invariant; Resolve reads stay on the correlation repo.",
}

// CorrelationAggregate owns foreign-id correlation rows.
type CorrelationAggregate interface {
	Aggregate

	// Correlate asserts a (master, other id, scheme) mapping. Idempotent
	// when the identical open row was asserted by the same source. An open
	// row from a different source fails with CodeCorrelationConflict unless
	// Override is set, in which case the old row is closed and a new one
	// opened so the reconciliation stays on record.
	Correlate(ctx context.Context, in CorrelateInput) (CorrelateResult, error)

	// Retire closes a correlation; silent success when nothing is open.
	// OtherID "*" closes every open correlation of the master org.
	Retire(ctx context.Context, in RetireCorrelationInput) (RetireCorrelationResult, error)
}

type CorrelateInput struct {
	MasterID int64
	SchemeID int64
	OtherID  string
	SourceID int64
	Comment  string
	Override bool
}

type CorrelateResult struct {
	CorrelationID int64
	Created       bool
	Superseded    bool
}

type RetireCorrelationInput struct {
	MasterID int64
	SchemeID int64
	OtherID  string // "*" closes all open correlations of the org
	SourceID int64
	Comment  string
}

type RetireCorrelationResult struct {
	Closed int
}
