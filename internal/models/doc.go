// Package models defines the core domain models for splitbill.
//
// # Models
//
//   - Participant: a user as seen from one ledger (friend, payer or co-participant)
//   - PaymentDetail: one participant's share of one expense
//   - Expense: the aggregate root reconstructed from the document store
//   - Friendship: an edge between two users, carrying its own identifier
//   - Snapshot: the in-memory ledger (current user, expenses, friends) replicated to the companion
//
// # Design Principles
//
//  1. Identity by ID only: two Participants are the same person iff their IDs match
//  2. Avoid circular references: relationships are expressed as ID strings
//  3. Store-agnostic: models carry JSON tags for the companion wire format, never store field names
//
// The store layout (collection and field names) lives in package records, which is the only place that
// translates between raw documents and these types.
package models
