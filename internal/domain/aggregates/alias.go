package aggregates

import "context"

var AliasAggregateContract = Contract{
	Name:             "Master.AliasAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Owns the (org, alias, lang) single-open invariant; AliasesOf reads stay on the alias repo.",
}

// AliasAggregate owns alias assertion/retirement for master orgs.
type AliasAggregate interface {
	Aggregate

	// Add asserts an alias. Idempotent when an identical open alias exists:
	// no duplicate row, existing provenance untouched.
	Add(ctx context.Context, in AddAliasInput) (AddAliasResult, error)

	// Retire closes an alias; silent success when nothing is open. Alias
	// "*" retires every open alias of the org regardless of language.
	Retire(ctx context.Context, in RetireAliasInput) (RetireAliasResult, error)
}

type AddAliasInput struct {
	OrgID    int64
	Alias    string
	Lang     string
	SourceID int64
	Comment  string
}

type AddAliasResult struct {
	OrgID   int64
	AliasID int64
	Created bool
}

type RetireAliasInput struct {
	OrgID    int64
	Alias    string // "*" closes all open aliases of the org
	Lang     string
	SourceID int64
	Comment  string
}

type RetireAliasResult struct {
	OrgID  int64
	Closed int
}
