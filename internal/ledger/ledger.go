// Package ledger implements the append-only conversation ledger.
//
// A Conversation owns an ordered set of Statements and the VoteRecords cast
// against them. Statements and votes can only be added, never edited or
// removed, and every mutation is gated by the conversation deadline and an
// optional eligibility check. Batches of actions execute atomically: either
// every action in the batch applies, or none do.
package ledger
