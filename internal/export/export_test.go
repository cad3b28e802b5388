package export

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestTableJSONKeepsColumnOrderAndConvertsValues(t *testing.T) {
	createdAt := time.Date(2026, 3, 4, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	db := &fakeQuerier{rows: &fakeRows{
		fields: []pgconn.FieldDescription{
			{Name: "id", DataTypeOID: pgtype.Int8OID},
			{Name: "model", DataTypeOID: pgtype.TextOID},
			{Name: "registered_on", DataTypeOID: pgtype.DateOID},
			{Name: "created_at", DataTypeOID: pgtype.TimestamptzOID},
			{Name: "specs", DataTypeOID: pgtype.JSONBOID},
			{Name: "owner_id", DataTypeOID: pgtype.UUIDOID},
			{Name: "price", DataTypeOID: pgtype.NumericOID},
			{Name: "tags", DataTypeOID: pgtype.TextArrayOID},
			{Name: "notes", DataTypeOID: pgtype.TextOID},
		},
		values: [][]any{{
			int64(1),
			"Model S",
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			createdAt,
			map[string]any{"doors": float64(4)},
			[16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00},
			pgtype.Numeric{Int: big.NewInt(4999950), Exp: -2, Valid: true},
			[]any{"electric", "sedan"},
			nil,
		}},
	}}

	got, err := NewExporter(db).TableJSON(context.Background(), "cars", "")
	if err != nil {
		t.Fatalf("TableJSON() error = %v", err)
	}
	if db.lastSQL != "SELECT * FROM cars" {
		t.Fatalf("sql = %q", db.lastSQL)
	}

	want := `[
  {
    "id": 1,
    "model": "Model S",
    "registered_on": "2026-03-01",
    "created_at": "2026-03-04T11:30:00Z",
    "specs": {
      "doors": 4
    },
    "owner_id": "123e4567-e89b-12d3-a456-426614174000",
    "price": 49999.50,
    "tags": [
      "electric",
      "sedan"
    ],
    "notes": null
  }
]`
	if got != want {
		t.Fatalf("TableJSON() =\n%s\nwant\n%s", got, want)
	}
	if !db.rows.closed {
		t.Fatal("rows were not closed")
	}
}

func TestTableJSONAppendsWhereClauseVerbatim(t *testing.T) {
	db := &fakeQuerier{rows: &fakeRows{}}
	got, err := NewExporter(db).TableJSON(context.Background(), "public.cars", "price > 100 AND model LIKE 'T%'")
	if err != nil {
		t.Fatalf("TableJSON() error = %v", err)
	}
	if db.lastSQL != "SELECT * FROM public.cars WHERE price > 100 AND model LIKE 'T%'" {
		t.Fatalf("sql = %q", db.lastSQL)
	}
	if got != "[]" {
		t.Fatalf("TableJSON() = %q, want []", got)
	}
}

func TestTableJSONIgnoresBlankWhere(t *testing.T) {
	db := &fakeQuerier{rows: &fakeRows{}}
	if _, err := NewExporter(db).TableJSON(context.Background(), "cars", "   "); err != nil {
		t.Fatalf("TableJSON() error = %v", err)
	}
	if db.lastSQL != "SELECT * FROM cars" {
		t.Fatalf("sql = %q", db.lastSQL)
	}
}

func TestTableJSONRejectsInvalidTableNames(t *testing.T) {
	db := &fakeQuerier{rows: &fakeRows{}}
	exporter := NewExporter(db)
	for _, table := range []string{"", "cars;drop table users", "cars where 1=1", "cars--", "\"cars\""} {
		_, err := exporter.TableJSON(context.Background(), table, "")
		if !errors.Is(err, ErrInvalidTableName) {
			t.Fatalf("TableJSON(%q) error = %v, want ErrInvalidTableName", table, err)
		}
	}
	if db.lastSQL != "" {
		t.Fatalf("query should not run, got %q", db.lastSQL)
	}
}

func TestTableJSONWrapsQueryAndIterationErrors(t *testing.T) {
	db := &fakeQuerier{err: errors.New("relation \"cars\" does not exist")}
	_, err := NewExporter(db).TableJSON(context.Background(), "cars", "")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("TableJSON() error = %v", err)
	}

	db = &fakeQuerier{rows: &fakeRows{err: errors.New("connection reset")}}
	_, err = NewExporter(db).TableJSON(context.Background(), "cars", "")
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("TableJSON() error = %v", err)
	}
}

func TestTableJSONWithoutDatabase(t *testing.T) {
	if _, err := NewExporter(nil).TableJSON(context.Background(), "cars", ""); err == nil {
		t.Fatal("expected error without database")
	}
}

func TestEncodeJSONKeepsNumericPrecision(t *testing.T) {
	large, ok := new(big.Int).SetString("12345678901234567890123456789", 10)
	if !ok {
		t.Fatal("big.Int parse failed")
	}
	row := testRow(
		"exact", convertValue(pgtype.NumericOID, pgtype.Numeric{Int: large, Exp: -9, Valid: true}),
		"nan", convertValue(pgtype.NumericOID, pgtype.Numeric{NaN: true, Valid: true}),
		"inf", convertValue(pgtype.NumericOID, pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}),
		"null", convertValue(pgtype.NumericOID, pgtype.Numeric{}),
	)

	payload, err := EncodeJSON([]Row{row})
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	want := `[
  {
    "exact": 12345678901234567890.123456789,
    "nan": "NaN",
    "inf": "Infinity",
    "null": null
  }
]`
	if string(payload) != want {
		t.Fatalf("EncodeJSON() =\n%s\nwant\n%s", payload, want)
	}
}

func TestConvertValueDateArray(t *testing.T) {
	got := convertValue(pgtype.DateArrayOID, []any{time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), nil})
	items, ok := got.([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("convertValue() = %#v", got)
	}
	if items[0] != "2026-01-02" || items[1] != nil {
		t.Fatalf("convertValue() = %#v", items)
	}
}

type fakeQuerier struct {
	rows    *fakeRows
	err     error
	lastSQL string
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.lastSQL = sql
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeRows struct {
	fields []pgconn.FieldDescription
	values [][]any
	err    error
	next   int
	closed bool
}

func (r *fakeRows) Close() { r.closed = true }

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }

func (r *fakeRows) Next() bool {
	if r.next >= len(r.values) {
		return false
	}
	r.next++
	return true
}

func (r *fakeRows) Scan(_ ...any) error { return errors.New("not implemented") }

func (r *fakeRows) Values() ([]any, error) { return r.values[r.next-1], nil }

func (r *fakeRows) RawValues() [][]byte { return nil }

func (r *fakeRows) Conn() *pgx.Conn { return nil }
