package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestChatRequestOmitsEmptyFunctionsButKeepsTemperature(t *testing.T) {
	body, err := json.Marshal(ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{TextMessage(RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(body)
	if strings.Contains(got, "functions") {
		t.Fatalf("expected functions to be omitted: %s", got)
	}
	if !strings.Contains(got, `"temperature":0`) {
		t.Fatalf("expected temperature to be emitted: %s", got)
	}
}

func TestMessageDistinguishesAbsentAndEmptyContent(t *testing.T) {
	absent, _ := json.Marshal(Message{Role: RoleAssistant})
	if strings.Contains(string(absent), "content") {
		t.Fatalf("absent content serialized: %s", absent)
	}
	empty, _ := json.Marshal(TextMessage(RoleAssistant, ""))
	if !strings.Contains(string(empty), `"content":""`) {
		t.Fatalf("empty content dropped: %s", empty)
	}
}

func TestFunctionDefinitionSchemaKeepsParameterOrder(t *testing.T) {
	def := FunctionDefinition{
		Name:        "runQuery",
		Description: "Run a SQL query",
		Parameters: []FunctionParam{
			{Name: "query", Type: "string", Description: "SQL"},
			{Name: "limit", Type: "integer"},
		},
	}
	body, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"name":"runQuery","description":"Run a SQL query","parameters":{"properties":{"query":{"type":"string","description":"SQL"},"limit":{"type":"integer"}},"required":["query","limit"],"type":"object"}}`
	if string(body) != want {
		t.Fatalf("Marshal() =\n%s\nwant\n%s", body, want)
	}
}

func TestDecodeArgumentsAcceptedShapes(t *testing.T) {
	cases := map[string]string{
		"object":         `{"query":"SELECT 1"}`,
		"encoded string": `"{\"query\":\"SELECT 1\"}"`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			call := FunctionCall{Name: "runQuery", Arguments: json.RawMessage(raw)}
			query, ok, err := call.StringArgument("query")
			if err != nil {
				t.Fatalf("StringArgument() error = %v", err)
			}
			if !ok || query != "SELECT 1" {
				t.Fatalf("StringArgument() = %q, %v", query, ok)
			}
		})
	}
}

func TestDecodeArgumentsEmptyShapes(t *testing.T) {
	for _, raw := range []string{``, `null`, `""`, `{}`} {
		call := FunctionCall{Arguments: json.RawMessage(raw)}
		args, err := call.DecodeArguments()
		if err != nil {
			t.Fatalf("DecodeArguments(%q) error = %v", raw, err)
		}
		if len(args) != 0 {
			t.Fatalf("DecodeArguments(%q) = %#v", raw, args)
		}
	}
}

func TestDecodeArgumentsRejectsOtherShapes(t *testing.T) {
	for _, raw := range []string{`42`, `[1,2]`, `true`, `"not json"`, `"[1]"`, `{"query":`} {
		call := FunctionCall{Arguments: json.RawMessage(raw)}
		if _, err := call.DecodeArguments(); !errors.Is(err, ErrInvalidArguments) {
			t.Fatalf("DecodeArguments(%q) error = %v, want ErrInvalidArguments", raw, err)
		}
	}
}

func TestStringArgumentRejectsNonString(t *testing.T) {
	call := FunctionCall{Arguments: json.RawMessage(`{"query":7}`)}
	if _, _, err := call.StringArgument("query"); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("StringArgument() error = %v", err)
	}
	missing := FunctionCall{Arguments: json.RawMessage(`{"sql":"SELECT 1"}`)}
	if _, ok, err := missing.StringArgument("query"); err != nil || ok {
		t.Fatalf("StringArgument() = ok=%v err=%v, want missing", ok, err)
	}
}

func TestMessageUnmarshalNormalizesToolCalls(t *testing.T) {
	raw := `{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"runQuery","arguments":"{\"query\":\"SELECT 1\"}"}}]}`
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Content != nil {
		t.Fatalf("Content = %q, want nil", *msg.Content)
	}
	if msg.FunctionCall == nil || msg.FunctionCall.Name != "runQuery" {
		t.Fatalf("FunctionCall = %#v", msg.FunctionCall)
	}
	query, ok, err := msg.FunctionCall.StringArgument("query")
	if err != nil || !ok || query != "SELECT 1" {
		t.Fatalf("StringArgument() = %q, %v, %v", query, ok, err)
	}
}

func TestMessageUnmarshalPrefersFunctionCall(t *testing.T) {
	raw := `{"role":"assistant","function_call":{"name":"runQuery","arguments":{"query":"SELECT 2"}},"tool_calls":[{"type":"function","function":{"name":"other"}}]}`
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.FunctionCall == nil || msg.FunctionCall.Name != "runQuery" {
		t.Fatalf("FunctionCall = %#v", msg.FunctionCall)
	}
}
