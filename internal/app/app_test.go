package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatdb/chatdb/internal/config"
)

func TestNewWiresSQLiteStoreAndDriver(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": "Hello"}},
			},
		})
	}))
	defer llmServer.Close()

	cfg := loadConfig(t, map[string]string{
		"CHATDB_PROFILE":      "test",
		"CHATDB_STORE_DRIVER": "sqlite",
		"CHATDB_STORE_DSN":    filepath.Join(t.TempDir(), "chatdb.sqlite"),
		"CHATDB_AI_BASE_URL":  llmServer.URL,
		"CHATDB_AI_API_KEY":   "test-key",
	})

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.Exporter != nil || a.Consultant != nil || a.Archiver != nil {
		t.Fatal("export services need the postgres driver")
	}
	deps := a.APIDependencies()
	if deps.Asker == nil {
		t.Fatal("Asker should be wired")
	}
	if deps.Exporter != nil || deps.Consultant != nil || deps.Archiver != nil {
		t.Fatalf("optional dependencies should stay nil: %#v", deps)
	}
	if mcpDeps := a.MCPDependencies(); mcpDeps.Exporter != nil || mcpDeps.SchemaHint != cfg.Prompt.SchemaHint {
		t.Fatalf("mcp deps = %#v", mcpDeps)
	}
	if err := a.Readiness()(context.Background()); err != nil {
		t.Fatalf("Readiness() error = %v", err)
	}

	if got := a.Driver.Ask(context.Background(), "Hi"); got != "Hello" {
		t.Fatalf("Ask() = %q", got)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"CHATDB_STORE_DRIVER": "sqlite",
		"CHATDB_STORE_DSN":    filepath.Join(t.TempDir(), "chatdb.sqlite"),
	})
	_, err := New(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "CHATDB_AI_API_KEY") {
		t.Fatalf("New() error = %v", err)
	}
}

func loadConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("chatdb-test", func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}
