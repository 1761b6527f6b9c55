package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agoralabs/agora/internal/eligibility"
	"github.com/google/uuid"
)

// voteKey identifies the unique (statement, voter) pair a VoteRecord covers.
type voteKey struct {
	statementID int
	voter       string
}

// Config carries the immutable metadata a conversation is created with.
type Config struct {
	ID          uuid.UUID
	Title       string
	Description string
	Creator     string
	Deadline    time.Time
	Gate        eligibility.Checker // nil means everyone is eligible
	Sink        EventSink           // nil means events are discarded
}

// Conversation is the per-conversation ledger of statements and votes.
// It is safe for concurrent use; batches hold the write lock for their
// whole scope, which gives them the required isolation.
type Conversation struct {
	id          uuid.UUID
	title       string
	description string
	creator     string
	deadline    time.Time
	createdAt   time.Time
	gate        eligibility.Checker
	sink        EventSink

	mu           sync.RWMutex
	statements   []*Statement
	votes        []*VoteRecord
	voteByKey    map[voteKey]int  // (statement, voter) -> vote id
	votesByVoter map[string][]int // voter -> vote ids in cast order
}

// New creates an empty conversation with the given metadata. The deadline
// is fixed for the conversation's lifetime; once it passes, the ledger is
// permanently read-only.
func New(cfg Config) *Conversation {
	return &Conversation{
		id:           cfg.ID,
		title:        cfg.Title,
		description:  cfg.Description,
		creator:      cfg.Creator,
		deadline:     cfg.Deadline,
		createdAt:    time.Now().UTC(),
		gate:         cfg.Gate,
		sink:         cfg.Sink,
		voteByKey:    make(map[voteKey]int),
		votesByVoter: make(map[string][]int),
	}
}

// AddStatement appends a statement and returns its assigned id.
// Checks run in order: deadline, eligibility, content.
func (c *Conversation) AddStatement(ctx context.Context, author, content string) (int, error) {
	c.mu.Lock()
	var pending []Event
	id, err := c.addStatementLocked(ctx, author, content, &pending)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	c.emit(pending)
	return id, nil
}

// CastVote records a vote on an existing statement. Checks run in order:
// deadline, statement existence, eligibility, duplicate vote.
//
// A Neutral choice is accepted: it persists a VoteRecord that blocks any
// later vote by the same voter on that statement, but increments neither
// counter.
func (c *Conversation) CastVote(ctx context.Context, voter string, statementID int, choice Choice) error {
	c.mu.Lock()
	var pending []Event
	err := c.castVoteLocked(ctx, voter, statementID, choice, &pending)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.emit(pending)
	return nil
}

// addStatementLocked applies a single addStatement action. Successful
// mutations record their event in pending; the caller flushes pending only
// once the enclosing atomic unit commits.
func (c *Conversation) addStatementLocked(ctx context.Context, author, content string, pending *[]Event) (int, error) {
	if c.closedLocked() {
		return 0, ErrClosed
	}
	if err := c.checkEligible(ctx, author); err != nil {
		return 0, err
	}
	if content == "" {
		return 0, ErrEmptyContent
	}

	st := &Statement{
		ID:        len(c.statements),
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	c.statements = append(c.statements, st)

	*pending = append(*pending, Event{
		Type:           EventStatementAdded,
		ConversationID: c.id,
		StatementID:    st.ID,
		Actor:          author,
		Content:        content,
	})
	return st.ID, nil
}

// castVoteLocked applies a single castVote action; see addStatementLocked
// for the pending-event contract.
func (c *Conversation) castVoteLocked(ctx context.Context, voter string, statementID int, choice Choice, pending *[]Event) error {
	if c.closedLocked() {
		return ErrClosed
	}
	if statementID < 0 || statementID >= len(c.statements) {
		return fmt.Errorf("statement %d: %w", statementID, ErrStatementNotFound)
	}
	if err := c.checkEligible(ctx, voter); err != nil {
		return err
	}
	key := voteKey{statementID: statementID, voter: voter}
	if _, ok := c.voteByKey[key]; ok {
		return ErrAlreadyVoted
	}

	rec := &VoteRecord{
		ID:          len(c.votes),
		Voter:       voter,
		StatementID: statementID,
		Choice:      choice,
	}
	c.votes = append(c.votes, rec)
	c.voteByKey[key] = rec.ID
	c.votesByVoter[voter] = append(c.votesByVoter[voter], rec.ID)

	switch choice {
	case ChoiceAgree:
		c.statements[statementID].AgreeCount++
	case ChoiceDisagree:
		c.statements[statementID].DisagreeCount++
	}

	*pending = append(*pending, Event{
		Type:           EventVoteCast,
		ConversationID: c.id,
		StatementID:    statementID,
		Actor:          voter,
		Choice:         choice,
	})
	return nil
}

// checkEligible re-evaluates the gate on every call; eligibility is never
// cached across actions.
func (c *Conversation) checkEligible(ctx context.Context, identity string) error {
	if c.gate == nil {
		return nil
	}
	ok, err := c.gate.IsEligible(ctx, identity)
	if err != nil {
		return fmt.Errorf("eligibility check for %s: %w", identity, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", identity, ErrNotEligible)
	}
	return nil
}

func (c *Conversation) closedLocked() bool {
	return !time.Now().UTC().Before(c.deadline)
}

func (c *Conversation) emit(events []Event) {
	if c.sink == nil {
		return
	}
	for _, ev := range events {
		c.sink.Emit(ev)
	}
}

// VotesByVoter returns the voter's VoteRecords in the order they were cast.
func (c *Conversation) VotesByVoter(voter string) []VoteRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.votesByVoter[voter]
	out := make([]VoteRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *c.votes[id])
	}
	return out
}

// Statement returns a copy of the statement with the given id.
func (c *Conversation) Statement(id int) (Statement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id < 0 || id >= len(c.statements) {
		return Statement{}, fmt.Errorf("statement %d: %w", id, ErrStatementNotFound)
	}
	return *c.statements[id], nil
}

// Statements returns copies of all statements in creation order.
func (c *Conversation) Statements() []Statement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Statement, 0, len(c.statements))
	for _, st := range c.statements {
		out = append(out, *st)
	}
	return out
}

// StatementCount returns the number of statements.
func (c *Conversation) StatementCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.statements)
}

// ID returns the conversation's registry-assigned identifier.
func (c *Conversation) ID() uuid.UUID { return c.id }

// Title returns the conversation title.
func (c *Conversation) Title() string { return c.title }

// Description returns the conversation description.
func (c *Conversation) Description() string { return c.description }

// Creator returns the identity that created the conversation.
func (c *Conversation) Creator() string { return c.creator }

// Deadline returns the fixed timestamp after which all mutation is rejected.
func (c *Conversation) Deadline() time.Time { return c.deadline }

// CreatedAt returns when the conversation was created.
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// Gate returns the eligibility checker, or nil if the conversation is open
// to everyone.
func (c *Conversation) Gate() eligibility.Checker { return c.gate }

// Closed reports whether the deadline has passed.
func (c *Conversation) Closed() bool {
	return !time.Now().UTC().Before(c.deadline)
}
