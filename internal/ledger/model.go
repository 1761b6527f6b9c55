package ledger

import "time"

// Statement is a single contribution to a conversation. Everything except
// the two vote counters is immutable after creation, and the counters only
// ever increase. IDs are dense: 0, 1, 2, … in creation order.
type Statement struct {
	ID            int       `json:"id"`
	Author        string    `json:"author"`
	Content       string    `json:"content"`
	AgreeCount    int       `json:"agree_count"`
	DisagreeCount int       `json:"disagree_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// VoteRecord is one voter's vote on one statement. At most one record ever
// exists per (statement, voter) pair; records are never mutated or removed.
type VoteRecord struct {
	ID          int    `json:"id"`
	Voter       string `json:"voter"`
	StatementID int    `json:"statement_id"`
	Choice      Choice `json:"choice"`
}
