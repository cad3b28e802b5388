// Package store opens the relational store selected by configuration.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatdb/chatdb/internal/config"
	"github.com/chatdb/chatdb/internal/query/duckdb"
	"github.com/chatdb/chatdb/internal/query/postgres"
	"github.com/chatdb/chatdb/internal/query/sqlexec"
	"github.com/chatdb/chatdb/internal/query/sqlite"
	"github.com/chatdb/chatdb/internal/tunnel"
)

type Store struct {
	Driver string
	DB     *sql.DB
	// Pool is only set for the postgres driver.
	Pool   *pgxpool.Pool
	tunnel *tunnel.Tunnel
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Store, error) {
	s := &Store{Driver: cfg.Store.Driver}
	var err error
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		err = s.openPostgres(ctx, cfg, logger)
	case config.StoreDriverDuckDB:
		var views map[string][]string
		views, err = duckdb.ParseParquetViews(cfg.Store.ParquetViews)
		if err == nil {
			s.DB, err = duckdb.Open(ctx, duckdb.DBConfig{
				Path:         cfg.Store.DSN,
				ParquetViews: views,
				MaxOpenConns: cfg.Store.MaxOpenConns,
			})
		}
	case config.StoreDriverSQLite:
		s.DB, err = sqlite.Open(ctx, sqlite.DBConfig{Path: cfg.Store.DSN})
	default:
		err = fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	dbConfig := postgres.DBConfig{
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	}
	if cfg.SSH.Enabled {
		tun, err := tunnel.Dial(ctx, tunnel.Config{
			Host:          cfg.SSH.Host,
			Port:          cfg.SSH.Port,
			User:          cfg.SSH.User,
			KeyPath:       cfg.SSH.KeyPath,
			KeyPassphrase: cfg.SSH.KeyPassphrase,
			KnownHosts:    cfg.SSH.KnownHosts,
		}, logger)
		if err != nil {
			return fmt.Errorf("ssh tunnel: %w", err)
		}
		s.tunnel = tun
		dbConfig.Dial = tun.DialContext
	}

	db, err := postgres.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	s.DB = db
	pool, err := postgres.OpenPool(ctx, dbConfig)
	if err != nil {
		return err
	}
	s.Pool = pool
	return nil
}

func (s *Store) Executor() *sqlexec.Executor {
	return sqlexec.New(s.DB)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not open")
	}
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	if s.tunnel != nil {
		errs = append(errs, s.tunnel.Close())
	}
	return errors.Join(errs...)
}
