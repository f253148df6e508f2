package aggregates

import (
	"context"
	"time"

	"github.com/oriadata/orgmaster/internal/domain"
)

var OrgAggregateContract = Contract{
	Name:             "Master.OrgAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns org version lifecycle plus the cross-table merge/split/dissolve transactions.",
}

// OrgAggregate owns the Entity Master lifecycle invariants.
//
// Write method failures return *aggregates.Error with codes: CodeValidation,
// CodeNotFound, CodeConflict, CodeInvariantViolation, CodeDanglingReference,
// CodeSplitAmbiguity, CodeRetryable, CodeInternal.
type OrgAggregate interface {
	Aggregate

	// Create allocates a stable org id and opens the initial version row.
	Create(ctx context.Context, in CreateOrgInput) (CreateOrgResult, error)

	// Rename supersedes the open org version with the new name, optionally
	// preserving the old name as an alias. Silent success when the name is
	// unchanged.
	Rename(ctx context.Context, in RenameOrgInput) (RenameOrgResult, error)

	// SetFlags supersedes the open org version with new classification
	// flags. The superseded row stays for audit.
	SetFlags(ctx context.Context, in SetOrgFlagsInput) (SetOrgFlagsResult, error)

	// Dissolve closes the org and cascade-closes all of its open aliases,
	// relationships, correlations, and locations. Silent success when the
	// org is already closed.
	Dissolve(ctx context.Context, in DissolveOrgInput) (DissolveOrgResult, error)

	// Merge declares two masters to be the same entity: re-points the
	// loser's open dependents to the winner, then dissolves the loser with
	// a comment recording the winning id. Single transaction.
	Merge(ctx context.Context, in MergeOrgsInput) (MergeOrgsResult, error)

	// Split undoes a merge found to be wrong: reopens the loser lineage as
	// a fresh org and moves back the dependents that were re-pointed at the
	// merge instant. Facts asserted after the merge are ambiguous and must
	// be assigned explicitly or the split fails with CodeSplitAmbiguity.
	Split(ctx context.Context, in SplitOrgInput) (SplitOrgResult, error)
}

type CreateOrgInput struct {
	Name     string
	Flags    domain.OrgFlags
	SourceID int64
	Comment  string
}

type CreateOrgResult struct {
	OrgID      int64
	ValidStart time.Time
}

type RenameOrgInput struct {
	OrgID    int64
	NewName  string
	SourceID int64
	Comment  string

	// AliasOldName records the previous name as an alias in OldNameLang.
	AliasOldName bool
	OldNameLang  string
}

type RenameOrgResult struct {
	OrgID   int64
	OldName string
	Renamed bool
}

type SetOrgFlagsInput struct {
	OrgID    int64
	Flags    domain.OrgFlags
	SourceID int64
	Comment  string
}

type SetOrgFlagsResult struct {
	OrgID      int64
	Superseded bool
}

type DissolveOrgInput struct {
	OrgID    int64
	SourceID int64
	Comment  string
}

type DissolveOrgResult struct {
	OrgID  int64
	Closed bool

	AliasesClosed       int
	RelationshipsClosed int
	CorrelationsClosed  int
	LocationsClosed     int
}

type MergeOrgsInput struct {
	WinnerID int64
	LoserID  int64
	SourceID int64
	Comment  string
}

type MergeOrgsResult struct {
	WinnerID int64
	LoserID  int64
	MergedAt time.Time

	AliasesMoved       int
	RelationshipsMoved int
	CorrelationsMoved  int
	LocationsMoved     int
}

// FactKind names a dependent mastered table in split assignments.
type FactKind string

const (
	FactAlias        FactKind = "alias"
	FactRelationship FactKind = "relationship"
	FactCorrelation  FactKind = "correlation"
	FactLocation     FactKind = "location"
)

// FactAssignment resolves one post-merge fact during a split: the row either
// moves to the split-off org or stays with the merged one.
type FactAssignment struct {
	Kind      FactKind
	RowID     int64
	MoveToNew bool
}

type SplitOrgInput struct {
	OrgID    int64
	NewName  string
	Flags    domain.OrgFlags
	SourceID int64
	Comment  string

	// Assignments disambiguates facts asserted after the merge instant.
	Assignments []FactAssignment
}

type SplitOrgResult struct {
	OrgID    int64
	NewOrgID int64
	MergedAt time.Time

	AliasesMoved       int
	RelationshipsMoved int
	CorrelationsMoved  int
	LocationsMoved     int
}
