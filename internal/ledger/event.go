package ledger

import "github.com/google/uuid"

// Event types emitted by a conversation.
const (
	EventStatementAdded = "statement.added"
	EventVoteCast       = "vote.cast"
)

// Event describes one successful mutation, for external observers and
// indexers. Events are emitted exactly once per durably applied mutation,
// in execution order; mutations rolled back with their batch emit nothing.
type Event struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
	StatementID    int       `json:"statement_id"`
	Actor          string    `json:"actor"`   // statement author or voter
	Content        string    `json:"content,omitempty"`
	Choice         Choice    `json:"choice"`
}

// EventSink receives conversation events. Implementations must not call
// back into the emitting conversation.
type EventSink interface {
	Emit(Event)
}
