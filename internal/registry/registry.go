// Package registry creates and indexes conversation ledgers. It is the
// only component that constructs conversations; the ledger itself never
// calls back into it.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agoralabs/agora/internal/eligibility"
	"github.com/agoralabs/agora/internal/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a conversation lookup finds no match.
var ErrNotFound = errors.New("conversation not found")

// ErrInvalidDuration is returned for a negative conversation duration.
var ErrInvalidDuration = errors.New("duration must be non-negative")

// ErrMissingCreator is returned when no creator identity is supplied.
var ErrMissingCreator = errors.New("creator identity is required")

// CreateParams describes a conversation to create.
type CreateParams struct {
	Title       string
	Description string
	Creator     string
	Duration    time.Duration
	Gate        eligibility.GateSpec
}

// Registry owns the collection of conversation ledgers: an ordered sequence
// plus id and creator indexes.
type Registry struct {
	gates  *eligibility.Builder
	sink   ledger.EventSink
	logger *zap.Logger

	mu            sync.RWMutex
	conversations []*ledger.Conversation // creation order
	byID          map[uuid.UUID]*ledger.Conversation
	byCreator     map[string][]*ledger.Conversation
}

// New creates an empty Registry. Conversations it creates share the given
// event sink and build their gates through the given Builder.
func New(gates *eligibility.Builder, sink ledger.EventSink, logger *zap.Logger) *Registry {
	return &Registry{
		gates:     gates,
		sink:      sink,
		logger:    logger,
		byID:      make(map[uuid.UUID]*ledger.Conversation),
		byCreator: make(map[string][]*ledger.Conversation),
	}
}

// Create builds a conversation with deadline now+duration, stores it, and
// indexes it by creator. A zero duration is allowed and produces a
// conversation that is closed from its first instant.
func (r *Registry) Create(params CreateParams) (*ledger.Conversation, error) {
	if params.Creator == "" {
		return nil, ErrMissingCreator
	}
	if params.Duration < 0 {
		return nil, ErrInvalidDuration
	}

	gate, err := r.gates.Build(params.Gate)
	if err != nil {
		return nil, fmt.Errorf("build gate: %w", err)
	}

	conv := ledger.New(ledger.Config{
		ID:          uuid.New(),
		Title:       params.Title,
		Description: params.Description,
		Creator:     params.Creator,
		Deadline:    time.Now().UTC().Add(params.Duration),
		Gate:        gate,
		Sink:        r.sink,
	})

	r.mu.Lock()
	r.conversations = append(r.conversations, conv)
	r.byID[conv.ID()] = conv
	r.byCreator[params.Creator] = append(r.byCreator[params.Creator], conv)
	r.mu.Unlock()

	r.logger.Info("conversation created",
		zap.String("id", conv.ID().String()),
		zap.String("creator", params.Creator),
		zap.Time("deadline", conv.Deadline()),
		zap.String("gate", params.Gate.Type),
	)
	return conv, nil
}

// Get returns the conversation with the given id.
func (r *Registry) Get(id uuid.UUID) (*ledger.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// ListByCreator returns the conversations created by the given identity,
// in creation order.
func (r *Registry) ListByCreator(creator string) []*ledger.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ledger.Conversation(nil), r.byCreator[creator]...)
}

// List returns all conversations in creation order.
func (r *Registry) List() []*ledger.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ledger.Conversation(nil), r.conversations...)
}
