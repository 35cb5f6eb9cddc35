// Package models defines the core domain models for the balance engine.
//
// # Models
//
//   - LedgerEntry: one immutable balance-affecting event (expense share,
//     settlement, or manual adjustment)
//   - NetBalance: the materialized net amount between a canonical user pair
//   - SimplifiedDebt: one payment in a settlement plan
//   - GroupSummary / UserSummary: composed query results
//
// # Design Principles
//
//  1. **Entries are immutable**: corrections are new ADJUSTMENT entries, never
//     edits of existing rows
//  2. **Balances are a cache**: every NetBalance is rebuildable by replaying
//     the group's ledger entries in creation order
//  3. **Canonical pairs**: a balance row always stores UserA < UserB with a
//     signed amount, so the two directions of a debt share one row
//  4. **No pointers between models**: relationships use ID strings
package models
