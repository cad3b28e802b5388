package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClientValidatesConfig(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x/", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Fatalf("Model() = %q", client.Model())
	}
}

func TestOpenAIClientChatSendsRequestAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["model"] != "test-model" {
			t.Fatalf("model = %v", payload["model"])
		}
		functions, ok := payload["functions"].([]any)
		if !ok || len(functions) != 1 {
			t.Fatalf("functions = %#v", payload["functions"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null,"function_call":{"name":"runQuery","arguments":"{\"query\":\"SELECT name FROM users\"}"}}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages:  []Message{TextMessage(RoleUser, "who?")},
		Functions: []FunctionDefinition{{Name: "runQuery", Parameters: []FunctionParam{{Name: "query", Type: "string"}}}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d", len(resp.Choices))
	}
	call := resp.Choices[0].Message.FunctionCall
	if call == nil || call.Name != "runQuery" {
		t.Fatalf("FunctionCall = %#v", call)
	}
}

func TestOpenAIClientChatReturnsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.Chat(context.Background(), ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestOpenAIClientChatRejectsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if _, err := client.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected decode error")
	}
}
