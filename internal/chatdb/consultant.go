package chatdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatdb/chatdb/internal/llm"
	"github.com/chatdb/chatdb/internal/observability"
)

var ErrNoAnswer = errors.New("language model returned no answer")

// DefaultConsultTemperature is the provider's default sampling temperature.
const DefaultConsultTemperature = 1.0

type TableExporter interface {
	TableJSON(ctx context.Context, table, where string) (string, error)
}

type ConsultantConfig struct {
	Model        string
	Table        string
	SystemPrompt string
	Temperature  float64
	Timeout      time.Duration
}

// Consultant answers free-form prompts in a single round by pasting a whole
// table, as JSON, into the user message.
type Consultant struct {
	client   ChatClient
	exporter TableExporter
	cfg      ConsultantConfig
	logger   *slog.Logger
}

func NewConsultant(client ChatClient, exporter TableExporter, cfg ConsultantConfig, logger *slog.Logger) *Consultant {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultConsultTemperature
	}
	return &Consultant{client: client, exporter: exporter, cfg: cfg, logger: logger}
}

func (c *Consultant) Answer(ctx context.Context, prompt string) (string, error) {
	if c.exporter == nil {
		return "", fmt.Errorf("table export is not configured")
	}
	data, err := c.exporter.TableJSON(ctx, c.cfg.Table, "")
	if err != nil {
		return "", fmt.Errorf("export %s: %w", c.cfg.Table, err)
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	resp, err := c.client.Chat(callCtx, buildConsultRequest(c.cfg, prompt, data))
	observability.ObserveLLMRoundTrip(1, err)
	if err != nil {
		return "", fmt.Errorf("consult language model: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", ErrNoAnswer
	}

	observability.RequestLogger(ctx, c.logger).InfoContext(ctx, "chatdb_consulted",
		slog.String("table", c.cfg.Table),
		slog.Int("data_bytes", len(data)),
	)
	return *resp.Choices[0].Message.Content, nil
}

func buildConsultRequest(cfg ConsultantConfig, prompt, data string) llm.ChatRequest {
	var user strings.Builder
	user.WriteString(prompt)
	user.WriteString("\n\n---\nUse this data (JSON):\n")
	user.WriteString(data)

	messages := make([]llm.Message, 0, 2)
	if strings.TrimSpace(cfg.SystemPrompt) != "" {
		messages = append(messages, llm.TextMessage(llm.RoleSystem, cfg.SystemPrompt))
	}
	messages = append(messages, llm.TextMessage(llm.RoleUser, user.String()))
	return llm.ChatRequest{Model: cfg.Model, Messages: messages, Temperature: cfg.Temperature}
}
