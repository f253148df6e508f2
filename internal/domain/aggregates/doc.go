// Package aggregates defines the write-side contracts of the entity master.
//
// Aggregates own the invariants of the mastered tables: at most one open
// fact per semantic key, append-only history, and all-or-nothing multi-table
// operations (dissolve, merge, split). Implementations live in
// internal/data/aggregates. Broad read-model queries stay on the table repos
// per ReadPolicyTableRepoQueries.
package aggregates
