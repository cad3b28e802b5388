package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

type DBConfig struct {
	// Path is the database file. Empty opens an in-memory database.
	Path string
	// ParquetViews maps a view name to the parquet files it reads.
	ParquetViews map[string][]string
	MaxOpenConns int
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	names := make([]string, 0, len(cfg.ParquetViews))
	for name := range cfg.ParquetViews {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		paths := cfg.ParquetViews[name]
		if len(paths) == 0 {
			continue
		}
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(name), quoteStringArray(paths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create view for table %q: %w", name, err)
		}
	}
	return db, nil
}

// ParseParquetViews reads "name=path,path;name=path".
func ParseParquetViews(raw string) (map[string][]string, error) {
	views := map[string][]string{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, pathList, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parquet view %q", entry)
		}
		for _, path := range strings.Split(pathList, ",") {
			if path = strings.TrimSpace(path); path != "" {
				views[name] = append(views[name], path)
			}
		}
		if len(views[name]) == 0 {
			return nil, fmt.Errorf("parquet view %q has no files", name)
		}
	}
	return views, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
