// Package export dumps relational tables as JSON and archives those dumps to
// object storage.
//
// TableJSON appends the caller's where clause to the statement verbatim. The
// table name is checked against a strict pattern but the where clause is not,
// so it must only come from code in this process. The HTTP and MCP transports
// and the Archiver always export whole tables.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/chatdb/chatdb/internal/observability"
)

var ErrInvalidTableName = errors.New("invalid table name")

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// Row keeps the column order of the result set.
type Row = *orderedmap.OrderedMap[string, any]

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Exporter struct {
	db querier
}

// NewExporter accepts a *pgxpool.Pool or anything else that runs pgx queries.
func NewExporter(db querier) *Exporter {
	return &Exporter{db: db}
}

func ValidateTableName(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

func (e *Exporter) TableJSON(ctx context.Context, table, where string) (string, error) {
	rows, err := e.Rows(ctx, table, where)
	if err == nil {
		var payload []byte
		payload, err = EncodeJSON(rows)
		if err == nil {
			observability.ObserveExport(nil)
			return string(payload), nil
		}
	}
	observability.ObserveExport(err)
	return "", err
}

func (e *Exporter) Rows(ctx context.Context, table, where string) ([]Row, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	if e == nil || e.db == nil {
		return nil, errors.New("export database is not configured")
	}

	statement := "SELECT * FROM " + table
	if strings.TrimSpace(where) != "" {
		statement += " WHERE " + where
	}

	rows, err := e.db.Query(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", table, err)
		}
		row := orderedmap.New[string, any]()
		for i, field := range fields {
			var value any
			if i < len(values) {
				value = values[i]
			}
			row.Set(field.Name, convertValue(field.DataTypeOID, value))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return out, nil
}

// EncodeJSON renders rows as an indented JSON array.
func EncodeJSON(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export json: %w", err)
	}
	return payload, nil
}

func convertValue(oid uint32, value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if oid == pgtype.DateOID {
			return v.Format(time.DateOnly)
		}
		return v.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Numeric:
		if !v.Valid {
			return nil
		}
		// Numeric marshals its exact digits and NaN itself, but not infinities.
		switch v.InfinityModifier {
		case pgtype.Infinity:
			return "Infinity"
		case pgtype.NegativeInfinity:
			return "-Infinity"
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = convertValue(elementOID(oid), item)
		}
		return out
	default:
		return v
	}
}

func elementOID(oid uint32) uint32 {
	switch oid {
	case pgtype.DateArrayOID:
		return pgtype.DateOID
	case pgtype.UUIDArrayOID:
		return pgtype.UUIDOID
	default:
		return 0
	}
}
