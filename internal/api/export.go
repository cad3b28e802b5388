package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/chatdb/chatdb/internal/export"
)

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	table := strings.TrimSpace(r.PathValue("table"))
	if r.URL.Query().Has("where") {
		writeError(r.Context(), w, http.StatusBadRequest, "FILTER_NOT_SUPPORTED", "exports always cover the whole table", false, map[string]any{"parameter": "where"})
		return
	}

	archive, err := parseBoolQuery(r, "archive")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ARCHIVE_FLAG", err.Error(), false, nil)
		return
	}
	if archive {
		if deps.Archiver == nil {
			writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
			return
		}
		result, err := deps.Archiver.Archive(r.Context(), table)
		if err != nil {
			writeExportError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "table export is not configured", false, nil)
		return
	}
	payload, err := deps.Exporter.TableJSON(r.Context(), table, "")
	if err != nil {
		writeExportError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, payload)
}

func handleListArchives(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archiver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	objects, err := deps.Archiver.List(r.Context(), table)
	if err != nil {
		writeExportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "objects": objects})
}

func handleDownloadArchive(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archiver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	key := r.PathValue("key")

	reader, info, err := deps.Archiver.Open(r.Context(), table, key)
	if err != nil {
		writeExportError(w, r, err)
		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func writeExportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, export.ErrInvalidTableName):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TABLE_NAME", err.Error(), false, nil)
	case errors.Is(err, export.ErrArchiveNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "ARCHIVE_NOT_FOUND", "archive object not found", false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "table export failed", true, map[string]any{"details": err.Error()})
	}
}

func parseBoolQuery(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return value, nil
}
