// Package handler exposes the conversation registry and ledgers over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agoralabs/agora/internal/eligibility"
	"github.com/agoralabs/agora/internal/ledger"
	"github.com/agoralabs/agora/internal/registry"
)

// ConversationHandler serves the conversation and ledger routes.
type ConversationHandler struct {
	reg    *registry.Registry
	logger *zap.Logger
}

// NewConversationHandler creates a ConversationHandler.
func NewConversationHandler(reg *registry.Registry, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{reg: reg, logger: logger}
}

// Register mounts the conversation routes on the given router group.
// auth guards every mutating route.
func (h *ConversationHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	c := rg.Group("/conversations")
	{
		c.POST("", auth, h.Create)
		c.GET("", h.List)
		c.GET("/:id", h.Get)
		c.GET("/:id/statements", h.ListStatements)
		c.GET("/:id/statements/:sid", h.GetStatement)
		c.POST("/:id/statements", auth, h.AddStatement)
		c.POST("/:id/votes", auth, h.CastVote)
		c.POST("/:id/batch", auth, h.ExecuteBatch)
		c.GET("/:id/voters/:voter/votes", h.VotesByVoter)
	}
}

// CreateConversationRequest is the payload for POST /conversations.
type CreateConversationRequest struct {
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	DurationSeconds int64                `json:"duration_seconds"`
	Gate            eligibility.GateSpec `json:"gate"`
}

// ConversationSummary is the API representation of conversation metadata.
type ConversationSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Creator        string    `json:"creator"`
	Deadline       time.Time `json:"deadline"`
	Closed         bool      `json:"closed"`
	StatementCount int       `json:"statement_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func summarize(conv *ledger.Conversation) ConversationSummary {
	return ConversationSummary{
		ID:             conv.ID().String(),
		Title:          conv.Title(),
		Description:    conv.Description(),
		Creator:        conv.Creator(),
		Deadline:       conv.Deadline(),
		Closed:         conv.Closed(),
		StatementCount: conv.StatementCount(),
		CreatedAt:      conv.CreatedAt(),
	}
}

// Create handles POST /conversations — creates a new conversation ledger
// owned by the authenticated caller.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	conv, err := h.reg.Create(registry.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Creator:     CallerIdentity(c),
		Duration:    time.Duration(req.DurationSeconds) * time.Second,
		Gate:        req.Gate,
	})
	if err != nil {
		switch {
		case errors.Is(err, eligibility.ErrUnknownGate),
			errors.Is(err, registry.ErrInvalidDuration),
			errors.Is(err, registry.ErrMissingCreator):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, eligibility.ErrSourceUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Error("create conversation", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	RecordConversationCreated()
	c.JSON(http.StatusCreated, summarize(conv))
}

// List handles GET /conversations — all conversations, or only those of
// ?creator= when given.
func (h *ConversationHandler) List(c *gin.Context) {
	var convs []*ledger.Conversation
	if creator := c.Query("creator"); creator != "" {
		convs = h.reg.ListByCreator(creator)
	} else {
		convs = h.reg.List()
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		out = append(out, summarize(conv))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// Get handles GET /conversations/:id.
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, summarize(conv))
}

// ListStatements handles GET /conversations/:id/statements.
func (h *ConversationHandler) ListStatements(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"statements": conv.Statements()})
}

// GetStatement handles GET /conversations/:id/statements/:sid.
func (h *ConversationHandler) GetStatement(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	sid, err := strconv.Atoi(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sid must be an integer"})
		return
	}
	st, err := conv.Statement(sid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// AddStatementRequest is the payload for POST /conversations/:id/statements.
type AddStatementRequest struct {
	Content string `json:"content"`
}

// AddStatement handles POST /conversations/:id/statements.
func (h *ConversationHandler) AddStatement(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	var req AddStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := conv.AddStatement(c.Request.Context(), CallerIdentity(c), req.Content)
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	RecordStatementAdded()
	c.JSON(http.StatusCreated, gin.H{"statement_id": id})
}

// CastVoteRequest is the payload for POST /conversations/:id/votes.
type CastVoteRequest struct {
	StatementID int           `json:"statement_id"`
	Choice      ledger.Choice `json:"choice"`
}

// CastVote handles POST /conversations/:id/votes.
func (h *ConversationHandler) CastVote(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := conv.CastVote(c.Request.Context(), CallerIdentity(c), req.StatementID, req.Choice); err != nil {
		h.writeLedgerError(c, err)
		return
	}

	RecordVoteCast(req.Choice.String())
	c.JSON(http.StatusCreated, gin.H{"status": "vote recorded"})
}

// ExecuteBatchRequest is the payload for POST /conversations/:id/batch.
type ExecuteBatchRequest struct {
	Actions []ledger.Action `json:"actions"`
}

// ExecuteBatch handles POST /conversations/:id/batch — all actions apply
// atomically under the caller's identity, or none do.
func (h *ConversationHandler) ExecuteBatch(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	var req ExecuteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Actions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch must contain at least one action"})
		return
	}

	results, err := conv.ExecuteBatch(c.Request.Context(), CallerIdentity(c), req.Actions)
	if err != nil {
		RecordBatch(false)
		var batchErr *ledger.BatchError
		if errors.As(err, &batchErr) {
			c.JSON(ledgerErrorStatus(batchErr.Err), gin.H{
				"error":         batchErr.Err.Error(),
				"failed_action": batchErr.Index,
			})
			return
		}
		h.writeLedgerError(c, err)
		return
	}

	RecordBatch(true)
	for _, res := range results {
		switch res.Kind {
		case ledger.ActionAddStatement:
			RecordStatementAdded()
		case ledger.ActionCastVote:
			RecordVoteCast("")
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// VotesByVoter handles GET /conversations/:id/voters/:voter/votes.
func (h *ConversationHandler) VotesByVoter(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		return
	}
	votes := conv.VotesByVoter(c.Param("voter"))
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

// lookup resolves the :id path parameter to a conversation, writing the
// error response itself on failure.
func (h *ConversationHandler) lookup(c *gin.Context) (*ledger.Conversation, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return nil, false
	}
	conv, err := h.reg.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return nil, false
	}
	return conv, true
}

// ledgerErrorStatus maps ledger errors to HTTP status codes.
func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrStatementNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrEmptyContent), errors.Is(err, ledger.ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *ConversationHandler) writeLedgerError(c *gin.Context, err error) {
	status := ledgerErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("ledger operation", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
