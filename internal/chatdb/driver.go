// Package chatdb answers natural-language questions about tabular data with a
// two-round function-call exchange: the model proposes a query through
// runQuery, the query is gated and executed, and the rows are handed back to
// the model for the final answer.
package chatdb

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatdb/chatdb/internal/llm"
	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/query"
)

type ChatClient interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
}

type Kind string

const (
	KindNone      Kind = ""
	KindTransport Kind = "transport"
	KindProtocol  Kind = "protocol"
	KindSafety    Kind = "safety"
	KindExecution Kind = "execution"
	KindTimeout   Kind = "timeout"
)

// Outcome is the result of one question. Answer is always set; Kind is empty
// on success.
type Outcome struct {
	Answer string
	Kind   Kind
	Rounds int
	Query  string
}

type Config struct {
	Model        string
	SchemaHint   string
	LLMTimeout   time.Duration
	QueryTimeout time.Duration
}

type Driver struct {
	client    ChatClient
	executor  query.Executor
	cfg       Config
	formatter query.Formatter
	logger    *slog.Logger
}

func NewDriver(client ChatClient, executor query.Executor, cfg Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Driver{
		client:    client,
		executor:  executor,
		cfg:       cfg,
		formatter: query.Formatter{Header: true},
		logger:    logger,
	}
}

// Ask returns the answer to question. Every failure is reported as a
// descriptive string; Ask never returns an error.
func (d *Driver) Ask(ctx context.Context, question string) string {
	return d.AskDetailed(ctx, question).Answer
}

func (d *Driver) AskDetailed(ctx context.Context, question string) Outcome {
	start := time.Now()
	logger := observability.RequestLogger(ctx, d.logger)
	s := &session{question: question, state: stateInit}

	for !s.state.terminal() {
		from := s.state
		s.state = d.step(ctx, s)
		logger.DebugContext(ctx, "chatdb_transition",
			slog.String("from", from.String()),
			slog.String("to", s.state.String()),
		)
	}

	observability.ObserveAsk(string(s.outcome.Kind))
	attrs := []any{
		slog.String("kind", string(s.outcome.Kind)),
		slog.Int("rounds", s.outcome.Rounds),
		slog.Duration("duration", time.Since(start)),
	}
	if s.outcome.Kind == KindNone {
		logger.InfoContext(ctx, "chatdb_answered", attrs...)
	} else {
		logger.WarnContext(ctx, "chatdb_failed", append(attrs, slog.String("answer", s.outcome.Answer))...)
	}
	return s.outcome
}
