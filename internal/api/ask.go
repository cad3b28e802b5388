package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

type consultRequest struct {
	Prompt string `json:"prompt"`
}

// handleAskAboutData treats the raw body as the question. Every outcome,
// including failures inside the question flow, is a 200 text answer.
func handleAskAboutData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "QUESTION_TOO_LARGE", "question exceeds the request size limit", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_BODY", "failed to read question", false, map[string]any{"details": err.Error()})
		return
	}

	answer := deps.Asker.Ask(r.Context(), string(body))
	writeText(w, http.StatusOK, answer)
}

func handleConsult(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Consultant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "table consultant is not configured", false, nil)
		return
	}

	var req consultRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}

	answer, err := deps.Consultant.Answer(r.Context(), req.Prompt)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "CHAT_FAILED", "failed to answer prompt", true, map[string]any{"details": err.Error()})
		return
	}
	writeText(w, http.StatusOK, answer)
}
