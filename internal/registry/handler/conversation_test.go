package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agoralabs/agora/internal/eligibility"
	"github.com/agoralabs/agora/internal/identity"
	"github.com/agoralabs/agora/internal/registry"
	"github.com/agoralabs/agora/internal/registry/handler"
)

// mapBalances is an in-memory BalanceSource for gated-conversation tests.
type mapBalances map[string]int64

func (m mapBalances) Balance(_ context.Context, identity string) (int64, error) {
	return m[identity], nil
}

type testServer struct {
	router   *gin.Engine
	tokens   *identity.TokenIssuer
	balances mapBalances
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	balances := mapBalances{}
	reg := registry.New(&eligibility.Builder{Tokens: balances}, nil, zap.NewNop())
	tokens := identity.NewTokenIssuer([]byte("test-secret"), "http://test", time.Hour)

	router := gin.New()
	v1 := router.Group("/api/v1")
	handler.NewConversationHandler(reg, zap.NewNop()).Register(v1, handler.AuthRequired(tokens))

	return &testServer{router: router, tokens: tokens, balances: balances}
}

func (s *testServer) do(t *testing.T, method, path, asIdentity string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if asIdentity != "" {
		token, err := s.tokens.Issue(asIdentity)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createConversation(t *testing.T, creator string, durationSeconds int64, gate eligibility.GateSpec) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/conversations", creator, gin.H{
		"title":            "test",
		"duration_seconds": durationSeconds,
		"gate":             gate,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create conversation: HTTP %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.ID
}

func TestCreateConversation_requiresAuth(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/conversations", "", gin.H{"title": "t"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestStatementAndVoteFlow(t *testing.T) {
	s := setupServer(t)
	id := s.createConversation(t, "alice", 3600, eligibility.GateSpec{})

	// Post a statement.
	w := s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/statements", "alice", gin.H{
		"content": "hello",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add statement: HTTP %d: %s", w.Code, w.Body.String())
	}
	var stmtResp struct {
		StatementID int `json:"statement_id"`
	}
	json.Unmarshal(w.Body.Bytes(), &stmtResp) //nolint:errcheck
	if stmtResp.StatementID != 0 {
		t.Errorf("first statement id: got %d, want 0", stmtResp.StatementID)
	}

	// Vote on it.
	w = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/votes", "bob", gin.H{
		"statement_id": 0,
		"choice":       "agree",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("cast vote: HTTP %d: %s", w.Code, w.Body.String())
	}

	// Duplicate vote conflicts.
	w = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/votes", "bob", gin.H{
		"statement_id": 0,
		"choice":       "disagree",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate vote: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// Counters visible on the statement.
	w = s.do(t, http.MethodGet, "/api/v1/conversations/"+id+"/statements/0", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get statement: HTTP %d", w.Code)
	}
	var st struct {
		AgreeCount    int `json:"agree_count"`
		DisagreeCount int `json:"disagree_count"`
	}
	json.Unmarshal(w.Body.Bytes(), &st) //nolint:errcheck
	if st.AgreeCount != 1 || st.DisagreeCount != 0 {
		t.Errorf("counters: got %d/%d, want 1/0", st.AgreeCount, st.DisagreeCount)
	}

	// Vote history is public and ordered.
	w = s.do(t, http.MethodGet, "/api/v1/conversations/"+id+"/voters/bob/votes", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("votes by voter: HTTP %d", w.Code)
	}
	var votes struct {
		Votes []struct {
			StatementID int    `json:"statement_id"`
			Choice      string `json:"choice"`
		} `json:"votes"`
	}
	json.Unmarshal(w.Body.Bytes(), &votes) //nolint:errcheck
	if len(votes.Votes) != 1 || votes.Votes[0].Choice != "agree" {
		t.Errorf("vote history: %+v", votes.Votes)
	}
}

func TestClosedConversation_rejectsMutation(t *testing.T) {
	s := setupServer(t)
	id := s.createConversation(t, "alice", 0, eligibility.GateSpec{})

	w := s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/statements", "alice", gin.H{
		"content": "too late",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("closed conversation: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGatedConversation_forbidsIneligible(t *testing.T) {
	s := setupServer(t)
	s.balances["bob"] = 99
	id := s.createConversation(t, "alice", 3600, eligibility.GateSpec{
		Type:      eligibility.GateMinBalance,
		Threshold: 100,
	})

	w := s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/statements", "bob", gin.H{
		"content": "let me in",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("ineligible caller: expected 403, got %d: %s", w.Code, w.Body.String())
	}

	// The same call passes once the balance reaches the threshold.
	s.balances["bob"] = 100
	w = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/statements", "bob", gin.H{
		"content": "let me in",
	})
	if w.Code != http.StatusCreated {
		t.Errorf("eligible caller: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBatch_atomicOverHTTP(t *testing.T) {
	s := setupServer(t)
	id := s.createConversation(t, "alice", 3600, eligibility.GateSpec{})

	// Seed a statement.
	if w := s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/statements", "alice", gin.H{
		"content": "proposal",
	}); w.Code != http.StatusCreated {
		t.Fatalf("seed statement: HTTP %d", w.Code)
	}

	// Conflicting double vote: whole batch rejected with the failing index.
	w := s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/batch", "bob", gin.H{
		"actions": []gin.H{
			{"kind": "cast_vote", "statement_id": 0, "choice": "agree"},
			{"kind": "cast_vote", "statement_id": 0, "choice": "disagree"},
		},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("batch conflict: expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var failResp struct {
		FailedAction *int `json:"failed_action"`
	}
	json.Unmarshal(w.Body.Bytes(), &failResp) //nolint:errcheck
	if failResp.FailedAction == nil || *failResp.FailedAction != 1 {
		t.Errorf("failed_action: got %v, want 1", failResp.FailedAction)
	}

	// Counters untouched by the rolled-back batch.
	w = s.do(t, http.MethodGet, "/api/v1/conversations/"+id+"/statements/0", "", nil)
	var st struct {
		AgreeCount    int `json:"agree_count"`
		DisagreeCount int `json:"disagree_count"`
	}
	json.Unmarshal(w.Body.Bytes(), &st) //nolint:errcheck
	if st.AgreeCount != 0 || st.DisagreeCount != 0 {
		t.Errorf("counters after rollback: got %d/%d, want 0/0", st.AgreeCount, st.DisagreeCount)
	}

	// A valid batch commits and reports per-action results.
	w = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/batch", "bob", gin.H{
		"actions": []gin.H{
			{"kind": "add_statement", "content": "counter proposal"},
			{"kind": "cast_vote", "statement_id": 1, "choice": "agree"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch commit: HTTP %d: %s", w.Code, w.Body.String())
	}
	var okResp struct {
		Results []struct {
			Kind        string `json:"kind"`
			StatementID int    `json:"statement_id"`
		} `json:"results"`
	}
	json.Unmarshal(w.Body.Bytes(), &okResp) //nolint:errcheck
	if len(okResp.Results) != 2 || okResp.Results[0].StatementID != 1 {
		t.Errorf("batch results: %+v", okResp.Results)
	}
}

func TestListConversations_byCreator(t *testing.T) {
	s := setupServer(t)
	s.createConversation(t, "alice", 3600, eligibility.GateSpec{})
	s.createConversation(t, "bob", 3600, eligibility.GateSpec{})
	s.createConversation(t, "alice", 3600, eligibility.GateSpec{})

	w := s.do(t, http.MethodGet, "/api/v1/conversations?creator=alice", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: HTTP %d", w.Code)
	}
	var resp struct {
		Conversations []struct {
			Creator string `json:"creator"`
		} `json:"conversations"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck
	if len(resp.Conversations) != 2 {
		t.Fatalf("expected 2 conversations for alice, got %d", len(resp.Conversations))
	}
	for _, c := range resp.Conversations {
		if c.Creator != "alice" {
			t.Errorf("unexpected creator %q", c.Creator)
		}
	}
}

func TestUnknownConversation(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/conversations/9a44e4c0-98b0-4366-8a6f-32010b0316ef", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/conversations/not-a-uuid", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %d", w.Code)
	}
}

func TestVoteOnMissingStatement(t *testing.T) {
	s := setupServer(t)
	id := s.createConversation(t, "alice", 3600, eligibility.GateSpec{})

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%s/votes", id), "bob", gin.H{
		"statement_id": 7,
		"choice":       "agree",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing statement: expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
