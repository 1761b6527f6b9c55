// Package client provides the Go SDK for the agora conversation service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Choice values accepted by CastVote and batch actions.
const (
	ChoiceNeutral  = "neutral"
	ChoiceAgree    = "agree"
	ChoiceDisagree = "disagree"
)

// Batch action kinds.
const (
	ActionAddStatement = "add_statement"
	ActionCastVote     = "cast_vote"
)

// GateSpec declares the eligibility gate of a new conversation.
type GateSpec struct {
	Type      string `json:"type"`
	Threshold int64  `json:"threshold,omitempty"`
}

// CreateConversationRequest is the payload for CreateConversation.
type CreateConversationRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	DurationSeconds int64    `json:"duration_seconds"`
	Gate            GateSpec `json:"gate"`
}

// Conversation holds conversation metadata returned by the API.
type Conversation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Creator        string    `json:"creator"`
	Deadline       time.Time `json:"deadline"`
	Closed         bool      `json:"closed"`
	StatementCount int       `json:"statement_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Statement is one statement of a conversation.
type Statement struct {
	ID            int       `json:"id"`
	Author        string    `json:"author"`
	Content       string    `json:"content"`
	AgreeCount    int       `json:"agree_count"`
	DisagreeCount int       `json:"disagree_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// VoteRecord is one recorded vote.
type VoteRecord struct {
	ID          int    `json:"id"`
	Voter       string `json:"voter"`
	StatementID int    `json:"statement_id"`
	Choice      string `json:"choice"`
}

// Action is one encoded action of an atomic batch.
type Action struct {
	Kind        string `json:"kind"`
	Content     string `json:"content,omitempty"`
	StatementID int    `json:"statement_id,omitempty"`
	Choice      string `json:"choice,omitempty"`
}

// ActionResult is the outcome of one applied batch action.
type ActionResult struct {
	Kind        string `json:"kind"`
	StatementID int    `json:"statement_id"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode   int
	Message      string
	FailedAction *int // set for batch failures: index of the failing action
}

// Error implements error.
func (e *APIError) Error() string {
	if e.FailedAction != nil {
		return fmt.Sprintf("HTTP %d: %s (batch action %d)", e.StatusCode, e.Message, *e.FailedAction)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to an agora service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client for the service at baseURL. token may be empty for
// read-only use.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateConversation creates a conversation owned by the token's identity.
func (c *Client) CreateConversation(ctx context.Context, req *CreateConversationRequest) (*Conversation, error) {
	var out Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/conversations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations lists all conversations, or only those created by
// creator when non-empty.
func (c *Client) ListConversations(ctx context.Context, creator string) ([]Conversation, error) {
	path := "/api/v1/conversations"
	if creator != "" {
		path += "?creator=" + url.QueryEscape(creator)
	}
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetConversation fetches one conversation's metadata.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListStatements fetches all statements of a conversation.
func (c *Client) ListStatements(ctx context.Context, id string) ([]Statement, error) {
	var out struct {
		Statements []Statement `json:"statements"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/conversations/"+url.PathEscape(id)+"/statements", nil, &out); err != nil {
		return nil, err
	}
	return out.Statements, nil
}

// AddStatement posts a statement and returns its assigned id.
func (c *Client) AddStatement(ctx context.Context, id, content string) (int, error) {
	var out struct {
		StatementID int `json:"statement_id"`
	}
	body := map[string]string{"content": content}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/conversations/"+url.PathEscape(id)+"/statements", body, &out); err != nil {
		return 0, err
	}
	return out.StatementID, nil
}

// CastVote votes on a statement.
func (c *Client) CastVote(ctx context.Context, id string, statementID int, choice string) error {
	body := map[string]any{"statement_id": statementID, "choice": choice}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/conversations/"+url.PathEscape(id)+"/votes", body, nil)
}

// VotesByVoter fetches a voter's vote history in cast order.
func (c *Client) VotesByVoter(ctx context.Context, id, voter string) ([]VoteRecord, error) {
	var out struct {
		Votes []VoteRecord `json:"votes"`
	}
	path := "/api/v1/conversations/" + url.PathEscape(id) + "/voters/" + url.PathEscape(voter) + "/votes"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Votes, nil
}

// ExecuteBatch submits actions for atomic execution. On a batch failure the
// returned error is an *APIError with FailedAction set.
func (c *Client) ExecuteBatch(ctx context.Context, id string, actions []Action) ([]ActionResult, error) {
	var out struct {
		Results []ActionResult `json:"results"`
	}
	body := map[string]any{"actions": actions}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/conversations/"+url.PathEscape(id)+"/batch", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e struct {
			Error        string `json:"error"`
			FailedAction *int   `json:"failed_action"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.FailedAction = e.FailedAction
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
