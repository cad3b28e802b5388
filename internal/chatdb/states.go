package chatdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/chatdb/chatdb/internal/llm"
	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/query"
	"github.com/chatdb/chatdb/internal/sqlgate"
)

const (
	msgNoResponse         = "No response from the language model: "
	msgNoFollowUp         = "No follow-up response from the language model: "
	msgNoChoices          = "No choices from the language model"
	msgNoFollowUpChoices  = "No choices in follow-up response"
	msgNoContentDirect    = "No content in response"
	msgNoContentFollowUp  = "No content"
	msgMissingQuery       = "The language model returned a function call without a 'query' argument."
	msgMalformedArguments = "The language model returned malformed function-call arguments: "
	msgRejected           = "Query rejected: %s."
	msgExecution          = "SQL execution error: "
	msgTimeout            = "Timed out waiting for %s: %v"

	targetModel         = "the language model"
	targetModelFollowUp = "a follow-up response from the language model"
	targetDatabase      = "the database"
)

type state int

const (
	stateInit state = iota
	stateAwaitRound1
	stateInterpretRound1
	stateValidate
	stateExecute
	stateFormat
	stateBuildRound2
	stateAwaitRound2
	stateInterpretRound2
	stateDone
	stateFailed
)

var stateNames = map[state]string{
	stateInit:            "init",
	stateAwaitRound1:     "await_round1",
	stateInterpretRound1: "interpret_round1",
	stateValidate:        "validate",
	stateExecute:         "execute",
	stateFormat:          "format",
	stateBuildRound2:     "build_round2",
	stateAwaitRound2:     "await_round2",
	stateInterpretRound2: "interpret_round2",
	stateDone:            "done",
	stateFailed:          "failed",
}

func (s state) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s state) terminal() bool {
	return s == stateDone || s == stateFailed
}

// session is the per-question scratch space. It is never shared.
type session struct {
	question string
	state    state
	request  llm.ChatRequest
	response llm.ChatResponse
	query    string
	result   query.Result
	evidence string
	outcome  Outcome
}

func (d *Driver) step(ctx context.Context, s *session) state {
	switch s.state {
	case stateInit:
		return d.buildRound1(s)
	case stateAwaitRound1:
		return d.awaitRound(ctx, s, 1)
	case stateInterpretRound1:
		return d.interpretRound1(s)
	case stateValidate:
		return d.validate(s)
	case stateExecute:
		return d.execute(ctx, s)
	case stateFormat:
		return d.format(s)
	case stateBuildRound2:
		return d.buildRound2(s)
	case stateAwaitRound2:
		return d.awaitRound(ctx, s, 2)
	case stateInterpretRound2:
		return d.interpretRound2(s)
	default:
		return s.fail(KindProtocol, fmt.Sprintf("unexpected driver state %s", s.state))
	}
}

func (d *Driver) buildRound1(s *session) state {
	s.request = buildRound1Request(d.cfg.Model, d.cfg.SchemaHint, s.question)
	return stateAwaitRound1
}

func (d *Driver) awaitRound(ctx context.Context, s *session, round int) state {
	callCtx := ctx
	if d.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.LLMTimeout)
		defer cancel()
	}

	resp, err := d.client.Chat(callCtx, s.request)
	s.outcome.Rounds++
	observability.ObserveLLMRoundTrip(round, err)
	if err != nil {
		target, prefix := targetModel, msgNoResponse
		if round == 2 {
			target, prefix = targetModelFollowUp, msgNoFollowUp
		}
		if isTimeout(err) {
			return s.fail(KindTimeout, fmt.Sprintf(msgTimeout, target, err))
		}
		return s.fail(KindTransport, prefix+err.Error())
	}

	s.response = resp
	if round == 2 {
		return stateInterpretRound2
	}
	return stateInterpretRound1
}

func (d *Driver) interpretRound1(s *session) state {
	if len(s.response.Choices) == 0 {
		return s.fail(KindProtocol, msgNoChoices)
	}
	message := s.response.Choices[0].Message
	if message.FunctionCall == nil {
		if message.Content == nil {
			return s.fail(KindProtocol, msgNoContentDirect)
		}
		return s.finish(*message.Content)
	}

	candidate, ok, err := message.FunctionCall.StringArgument(queryArgument)
	if err != nil {
		return s.fail(KindProtocol, msgMalformedArguments+err.Error())
	}
	if !ok {
		return s.fail(KindProtocol, msgMissingQuery)
	}
	s.query = candidate
	return stateValidate
}

func (d *Driver) validate(s *session) state {
	decision := sqlgate.Classify(s.query)
	s.outcome.Query = decision.Query
	if !decision.Permitted {
		observability.IncrementSQLRejection()
		return s.fail(KindSafety, fmt.Sprintf(msgRejected, decision.Reason))
	}
	s.query = decision.Query
	return stateExecute
}

func (d *Driver) execute(ctx context.Context, s *session) state {
	execCtx := ctx
	if d.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := d.executor.Execute(execCtx, s.query)
	observability.ObserveSQLExec(time.Since(start))
	if err != nil {
		if isTimeout(err) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return s.fail(KindTimeout, fmt.Sprintf(msgTimeout, targetDatabase, err))
		}
		message := err.Error()
		var execErr *query.ExecutionError
		if errors.As(err, &execErr) {
			message = execErr.Message
		}
		return s.fail(KindExecution, msgExecution+message)
	}
	observability.RequestLogger(ctx, d.logger).DebugContext(ctx, "chatdb_sql_executed",
		slog.Int("rows", len(result.Rows)),
		slog.Duration("sql_duration", result.Duration),
	)
	s.result = result
	return stateFormat
}

func (d *Driver) format(s *session) state {
	s.evidence = d.formatter.Format(s.result)
	return stateBuildRound2
}

func (d *Driver) buildRound2(s *session) state {
	s.request = buildRound2Request(d.cfg.Model, s.question, s.evidence)
	return stateAwaitRound2
}

func (d *Driver) interpretRound2(s *session) state {
	if len(s.response.Choices) == 0 {
		return s.fail(KindProtocol, msgNoFollowUpChoices)
	}
	content := s.response.Choices[0].Message.Content
	if content == nil {
		return s.fail(KindProtocol, msgNoContentFollowUp)
	}
	return s.finish(*content)
}

func (s *session) finish(answer string) state {
	s.outcome.Answer = answer
	s.outcome.Kind = KindNone
	return stateDone
}

func (s *session) fail(kind Kind, answer string) state {
	s.outcome.Answer = answer
	s.outcome.Kind = kind
	return stateFailed
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
