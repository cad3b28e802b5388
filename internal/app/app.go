// Package app wires configuration into the services shared by the chatdb
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatdb/chatdb/internal/api"
	"github.com/chatdb/chatdb/internal/chatdb"
	"github.com/chatdb/chatdb/internal/config"
	"github.com/chatdb/chatdb/internal/export"
	"github.com/chatdb/chatdb/internal/llm"
	"github.com/chatdb/chatdb/internal/mcpserver"
	"github.com/chatdb/chatdb/internal/observability"
	s3store "github.com/chatdb/chatdb/internal/storage/s3"
	"github.com/chatdb/chatdb/internal/store"
)

type App struct {
	Config      config.Config
	Logger      *slog.Logger
	Store       *store.Store
	ObjectStore *s3store.Store
	Driver      *chatdb.Driver
	// Exporter, Consultant and Archiver need the postgres driver; Archiver
	// also needs an enabled object store.
	Exporter   *export.Exporter
	Consultant *chatdb.Consultant
	Archiver   *export.Archiver
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return nil, errors.New("CHATDB_AI_API_KEY is required")
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("language model client: %w", err)
	}

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Logger: logger, Store: st}

	a.Driver = chatdb.NewDriver(client, st.Executor(), chatdb.Config{
		Model:        client.Model(),
		SchemaHint:   cfg.Prompt.SchemaHint,
		LLMTimeout:   cfg.AI.Timeout,
		QueryTimeout: cfg.Store.QueryTimeout,
	}, logger)

	if st.Pool != nil {
		a.Exporter = export.NewExporter(st.Pool)
		a.Consultant = chatdb.NewConsultant(client, a.Exporter, chatdb.ConsultantConfig{
			Model:        client.Model(),
			Table:        cfg.Prompt.ConsultTable,
			SystemPrompt: cfg.Prompt.ConsultSystemPrompt,
			Timeout:      cfg.AI.Timeout,
		}, logger)
	} else {
		logger.Info("table export disabled for store driver", slog.String("store_driver", st.Driver))
	}

	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		a.ObjectStore = objectStore
		if a.Exporter != nil {
			a.Archiver = export.NewArchiver(a.Exporter, objectStore, logger)
		}
	}
	return a, nil
}

func (a *App) Readiness() api.ReadinessCheck {
	checks := []api.ReadinessCheck{
		api.CheckStore(a.Store.HealthCheck),
		api.CheckLLMConfig(a.Config),
		api.CheckObjectStoreConfig(a.Config),
	}
	if a.ObjectStore != nil {
		checks = append(checks, a.ObjectStore.HealthCheck)
	}
	return api.CombineReadinessChecks(checks...)
}

// APIDependencies leaves optional services unset instead of storing typed nil
// pointers in the interfaces.
func (a *App) APIDependencies() api.Dependencies {
	deps := api.Dependencies{
		Logger:            a.Logger,
		Readiness:         a.Readiness(),
		DependencyTimeout: a.Config.Store.QueryTimeout,
		Asker:             a.Driver,
	}
	if a.Exporter != nil {
		deps.Exporter = a.Exporter
	}
	if a.Consultant != nil {
		deps.Consultant = a.Consultant
	}
	if a.Archiver != nil {
		deps.Archiver = a.Archiver
	}
	return deps
}

func (a *App) MCPDependencies() mcpserver.Deps {
	deps := mcpserver.Deps{
		Asker:      a.Driver,
		SchemaHint: a.Config.Prompt.SchemaHint,
	}
	if a.Exporter != nil {
		deps.Exporter = a.Exporter
	}
	if a.Consultant != nil {
		deps.Consultant = a.Consultant
	}
	return deps
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.Store.Close()
}
