package chatdb

import (
	"context"
	"errors"
	"testing"

	"github.com/chatdb/chatdb/internal/llm"
)

func TestConsultantPastesTableIntoPrompt(t *testing.T) {
	exporter := &fakeExporter{json: `[{"id":1,"model":"Sedan"}]`}
	client := &fakeChat{responses: []fakeReply{{resp: contentResponse("The Sedan is a great pick.")}}}
	consultant := NewConsultant(client, exporter, ConsultantConfig{
		Model:        "m",
		Table:        "cars",
		SystemPrompt: "Answer as a consultant.",
	}, nil)

	answer, err := consultant.Answer(context.Background(), "Which car should I buy?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer != "The Sedan is a great pick." {
		t.Fatalf("answer = %q", answer)
	}
	if exporter.table != "cars" || exporter.where != "" {
		t.Fatalf("exporter got table=%q where=%q", exporter.table, exporter.where)
	}
	if len(client.requests) != 1 {
		t.Fatalf("requests = %d", len(client.requests))
	}
	req := client.requests[0]
	if len(req.Functions) != 0 {
		t.Fatalf("functions = %#v", req.Functions)
	}
	if req.Temperature != DefaultConsultTemperature {
		t.Fatalf("temperature = %v", req.Temperature)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("messages = %#v", req.Messages)
	}
	want := "Which car should I buy?\n\n---\nUse this data (JSON):\n[{\"id\":1,\"model\":\"Sedan\"}]"
	if got := *req.Messages[1].Content; got != want {
		t.Fatalf("user message = %q", got)
	}
}

func TestConsultantSkipsEmptySystemPrompt(t *testing.T) {
	client := &fakeChat{responses: []fakeReply{{resp: contentResponse("ok")}}}
	consultant := NewConsultant(client, &fakeExporter{json: "[]"}, ConsultantConfig{Table: "cars"}, nil)

	if _, err := consultant.Answer(context.Background(), "hi"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	messages := client.requests[0].Messages
	if len(messages) != 1 || messages[0].Role != llm.RoleUser {
		t.Fatalf("messages = %#v", messages)
	}
}

func TestConsultantErrors(t *testing.T) {
	exportErr := errors.New("relation does not exist")
	_, err := NewConsultant(&fakeChat{}, &fakeExporter{err: exportErr}, ConsultantConfig{Table: "cars"}, nil).
		Answer(context.Background(), "hi")
	if !errors.Is(err, exportErr) {
		t.Fatalf("export failure error = %v", err)
	}

	_, err = NewConsultant(&fakeChat{responses: []fakeReply{{resp: llm.ChatResponse{}}}}, &fakeExporter{json: "[]"}, ConsultantConfig{Table: "cars"}, nil).
		Answer(context.Background(), "hi")
	if !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("empty choices error = %v", err)
	}

	chatErr := errors.New("503")
	_, err = NewConsultant(&fakeChat{responses: []fakeReply{{err: chatErr}}}, &fakeExporter{json: "[]"}, ConsultantConfig{Table: "cars"}, nil).
		Answer(context.Background(), "hi")
	if !errors.Is(err, chatErr) {
		t.Fatalf("chat failure error = %v", err)
	}

	if _, err := NewConsultant(&fakeChat{}, nil, ConsultantConfig{}, nil).Answer(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without exporter")
	}
}

type fakeExporter struct {
	json  string
	err   error
	table string
	where string
}

func (f *fakeExporter) TableJSON(_ context.Context, table, where string) (string, error) {
	f.table = table
	f.where = where
	return f.json, f.err
}
