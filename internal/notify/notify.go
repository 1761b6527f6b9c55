// Package notify delivers conversation events to external observers.
//
// Sinks implement ledger.EventSink. The webhook sink signs each delivery
// with HMAC-SHA256 so receivers can authenticate the sender; delivery is
// asynchronous and best-effort, with bounded retries.
package notify

import (
	"go.uber.org/zap"

	"github.com/agoralabs/agora/internal/ledger"
)

// LogSink writes every event to the structured log. It is the default sink
// when no webhook endpoint is configured.
type LogSink struct {
	Logger *zap.Logger
}

// Emit implements ledger.EventSink.
func (s *LogSink) Emit(ev ledger.Event) {
	s.Logger.Info("conversation event",
		zap.String("type", ev.Type),
		zap.String("conversation_id", ev.ConversationID.String()),
		zap.Int("statement_id", ev.StatementID),
		zap.String("actor", ev.Actor),
		zap.String("choice", ev.Choice.String()),
	)
}

// MultiSink fans an event out to every wrapped sink in order.
type MultiSink []ledger.EventSink

// Emit implements ledger.EventSink.
func (m MultiSink) Emit(ev ledger.Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
