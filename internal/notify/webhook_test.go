package notify_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agoralabs/agora/internal/ledger"
	"github.com/agoralabs/agora/internal/notify"
)

func TestWebhookSink_deliversSignedEvent(t *testing.T) {
	type received struct {
		body      []byte
		signature string
	}
	gotCh := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotCh <- received{body: body, signature: r.Header.Get("X-Agora-Signature")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink(srv.URL, "hook-secret", zap.NewNop())
	ev := ledger.Event{
		Type:           ledger.EventVoteCast,
		ConversationID: uuid.New(),
		StatementID:    3,
		Actor:          "bob",
		Choice:         ledger.ChoiceAgree,
	}
	sink.Emit(ev)

	var got received
	select {
	case got = <-gotCh:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never delivered")
	}

	// Body round-trips to the emitted event.
	var decoded ledger.Event
	if err := json.Unmarshal(got.body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != ev.Type || decoded.Actor != "bob" || decoded.StatementID != 3 {
		t.Errorf("delivered event: %+v", decoded)
	}

	// Signature is HMAC-SHA256 over the exact body.
	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(got.body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if got.signature != want {
		t.Errorf("signature: got %q, want %q", got.signature, want)
	}
}

func TestWebhookSink_recordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resultCh := make(chan bool, 1)
	sink := notify.NewWebhookSink(srv.URL, "s", zap.NewNop())
	sink.SetMetricsRecorder(func(success bool) { resultCh <- success })

	sink.Emit(ledger.Event{Type: ledger.EventStatementAdded})

	select {
	case ok := <-resultCh:
		if !ok {
			t.Error("expected successful delivery")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("metrics recorder never called")
	}
}

func TestMultiSink_fansOutInOrder(t *testing.T) {
	var order []string
	a := sinkFunc(func(ledger.Event) { order = append(order, "a") })
	b := sinkFunc(func(ledger.Event) { order = append(order, "b") })

	notify.MultiSink{a, b}.Emit(ledger.Event{Type: ledger.EventStatementAdded})

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("fan-out order: %v", order)
	}
}

type sinkFunc func(ledger.Event)

func (f sinkFunc) Emit(ev ledger.Event) { f(ev) }
