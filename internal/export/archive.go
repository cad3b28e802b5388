package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/storage"
)

var ErrArchiveNotFound = errors.New("archive not found")

type parquetRow struct {
	Table    string `parquet:"table"`
	RowIndex int64  `parquet:"row_index"`
	RowJSON  string `parquet:"row_json"`
}

type rowSource interface {
	Rows(ctx context.Context, table, where string) ([]Row, error)
}

type Archive struct {
	Table      string    `json:"table"`
	ID         string    `json:"id"`
	JSONKey    string    `json:"json_key"`
	ParquetKey string    `json:"parquet_key"`
	RowCount   int       `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type Archiver struct {
	source rowSource
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewArchiver(source rowSource, store storage.ObjectStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Archiver{
		source: source,
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Archive exports the whole table and writes a JSON and a Parquet copy next
// to each other. A failed Parquet upload removes the JSON object again.
func (a *Archiver) Archive(ctx context.Context, table string) (Archive, error) {
	archive, err := a.archive(ctx, table)
	observability.ObserveExport(err)
	return archive, err
}

func (a *Archiver) archive(ctx context.Context, table string) (Archive, error) {
	if err := ValidateTableName(table); err != nil {
		return Archive{}, err
	}
	rows, err := a.source.Rows(ctx, table, "")
	if err != nil {
		return Archive{}, err
	}

	createdAt := a.now().UTC()
	id := a.newID()
	jsonKey, err := storage.BuildExportPath(table, createdAt, id, "json")
	if err != nil {
		return Archive{}, err
	}
	parquetKey, err := storage.BuildExportPath(table, createdAt, id, "parquet")
	if err != nil {
		return Archive{}, err
	}

	jsonPayload, err := EncodeJSON(rows)
	if err != nil {
		return Archive{}, err
	}
	parquetPayload, err := EncodeParquet(table, rows)
	if err != nil {
		return Archive{}, err
	}

	metadata := map[string]string{
		"table":      table,
		"export-id":  id,
		"row-count":  fmt.Sprintf("%d", len(rows)),
		"created-at": createdAt.Format(time.RFC3339Nano),
	}
	if _, err := a.store.Put(ctx, jsonKey, bytes.NewReader(jsonPayload), int64(len(jsonPayload)), storage.PutOptions{
		ContentType: "application/json",
		Metadata:    metadata,
	}); err != nil {
		return Archive{}, fmt.Errorf("put json archive: %w", err)
	}
	if _, err := a.store.Put(ctx, parquetKey, bytes.NewReader(parquetPayload), int64(len(parquetPayload)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata:    metadata,
	}); err != nil {
		if cleanupErr := a.store.Delete(ctx, jsonKey); cleanupErr != nil {
			a.logger.Warn("remove orphaned json archive failed", "key", jsonKey, "error", cleanupErr)
		}
		return Archive{}, fmt.Errorf("put parquet archive: %w", err)
	}

	a.logger.Info("table archived", "table", table, "export_id", id, "rows", len(rows))
	return Archive{
		Table:      table,
		ID:         id,
		JSONKey:    jsonKey,
		ParquetKey: parquetKey,
		RowCount:   len(rows),
		CreatedAt:  createdAt,
	}, nil
}

// List returns the archived objects of table, newest first.
func (a *Archiver) List(ctx context.Context, table string) ([]storage.ObjectInfo, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	prefix, err := storage.ExportPrefix(table)
	if err != nil {
		return nil, err
	}
	objects, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Key > objects[j].Key
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// Open streams one archived object. Keys outside the table's export prefix
// are reported as not found.
func (a *Archiver) Open(ctx context.Context, table, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	if !storage.IsExportKey(table, key) {
		return nil, storage.ObjectInfo{}, ErrArchiveNotFound
	}
	info, err := a.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrArchiveNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrArchiveNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return reader, info, nil
}

// EncodeParquet stores one record per row holding the row as compact JSON.
func EncodeParquet(table string, rows []Row) ([]byte, error) {
	records := make([]parquetRow, 0, len(rows))
	for i, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		records = append(records, parquetRow{Table: table, RowIndex: int64(i), RowJSON: string(payload)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
