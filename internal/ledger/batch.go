package ledger

import (
	"context"
	"fmt"
)

// Batch action kinds.
const (
	ActionAddStatement = "add_statement"
	ActionCastVote     = "cast_vote"
)

// Action is one encoded ledger action inside a batch. All actions of a
// batch execute under the same caller identity.
type Action struct {
	Kind        string `json:"kind"`
	Content     string `json:"content,omitempty"`      // add_statement
	StatementID int    `json:"statement_id,omitempty"` // cast_vote
	Choice      Choice `json:"choice"`                 // cast_vote
}

// ActionResult is the outcome of one successfully applied batch action.
type ActionResult struct {
	Kind        string `json:"kind"`
	StatementID int    `json:"statement_id"` // assigned id for add_statement, voted id for cast_vote
}

// snapshot captures the full mutable state of a conversation so a failed
// batch can restore it exactly.
type snapshot struct {
	statements   []*Statement
	votes        []*VoteRecord
	voteByKey    map[voteKey]int
	votesByVoter map[string][]int
}

func (c *Conversation) snapshotLocked() snapshot {
	s := snapshot{
		statements:   make([]*Statement, len(c.statements)),
		votes:        make([]*VoteRecord, len(c.votes)),
		voteByKey:    make(map[voteKey]int, len(c.voteByKey)),
		votesByVoter: make(map[string][]int, len(c.votesByVoter)),
	}
	for i, st := range c.statements {
		cp := *st
		s.statements[i] = &cp
	}
	for i, v := range c.votes {
		cp := *v
		s.votes[i] = &cp
	}
	for k, v := range c.voteByKey {
		s.voteByKey[k] = v
	}
	for voter, ids := range c.votesByVoter {
		s.votesByVoter[voter] = append([]int(nil), ids...)
	}
	return s
}

func (c *Conversation) restoreLocked(s snapshot) {
	c.statements = s.statements
	c.votes = s.votes
	c.voteByKey = s.voteByKey
	c.votesByVoter = s.votesByVoter
}

// ExecuteBatch runs the actions in order under one caller identity as a
// single atomic unit. Every action is fully re-validated, exactly as a
// standalone call would be, and earlier actions' effects are visible to
// later ones. The first failure rolls the conversation back to its
// pre-batch state, discards all buffered events, and returns a BatchError
// identifying the failing action. On success the per-action results are
// returned in order and one event per action is emitted.
func (c *Conversation) ExecuteBatch(ctx context.Context, caller string, actions []Action) ([]ActionResult, error) {
	c.mu.Lock()
	results, pending, err := c.executeBatchLocked(ctx, caller, actions)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.emit(pending)
	return results, nil
}

func (c *Conversation) executeBatchLocked(ctx context.Context, caller string, actions []Action) ([]ActionResult, []Event, error) {
	snap := c.snapshotLocked()
	var pending []Event
	results := make([]ActionResult, 0, len(actions))

	for i, a := range actions {
		var (
			stmtID int
			err    error
		)
		switch a.Kind {
		case ActionAddStatement:
			stmtID, err = c.addStatementLocked(ctx, caller, a.Content, &pending)
		case ActionCastVote:
			stmtID = a.StatementID
			err = c.castVoteLocked(ctx, caller, a.StatementID, a.Choice, &pending)
		default:
			err = fmt.Errorf("%q: %w", a.Kind, ErrUnknownAction)
		}
		if err != nil {
			c.restoreLocked(snap)
			return nil, nil, &BatchError{Index: i, Err: err}
		}
		results = append(results, ActionResult{Kind: a.Kind, StatementID: stmtID})
	}
	return results, pending, nil
}
