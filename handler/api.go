package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"tax-assistant/internal/domain"
	"tax-assistant/internal/usecase"
)

const (
	maxBodyBytes    = 1 << 20
	msgNoPrompt     = "No prompt provided"
	statusSuccess   = "success"
	msgAPIRunning   = "API is running"
	msgDBSuccessful = "Database connection successful"
	apiErrorPrefix  = "API Error: "
)

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type historyEntry struct {
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	History []historyEntry `json:"history"`
	Status  string         `json:"status"`
}

func (h *Handler) handleTaxChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoPrompt})
		return
	}

	answer, err := h.uc.Answer(r.Context(), req.Prompt)
	if err != nil {
		status, body := chatErrorResponse(err)
		h.logger.ErrorContext(r.Context(), "tax chat failed",
			"correlation_id", correlationFrom(r.Context()), "status", status, "err", err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer, Status: statusSuccess})
}

func chatErrorResponse(err error) (int, errorResponse) {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
	if uerr.Code == usecase.ErrorInvalidInput {
		return http.StatusBadRequest, errorResponse{Error: msgNoPrompt}
	}
	return uerr.HTTPStatus(), errorResponse{Error: apiErrorPrefix + uerr.Detail()}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: msgAPIRunning})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 0
	}

	exs, err := h.uc.History(r.Context(), q.Get("user_id"), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history failed",
			"correlation_id", correlationFrom(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorDetail(err)})
		return
	}

	out := historyResponse{History: make([]historyEntry, 0, len(exs)), Status: statusSuccess}
	for _, ex := range exs {
		out.History = append(out.History, toHistoryEntry(ex))
	}
	writeJSON(w, http.StatusOK, out)
}

func toHistoryEntry(ex domain.Exchange) historyEntry {
	return historyEntry{
		Prompt:    ex.Prompt,
		Response:  ex.Response,
		Timestamp: ex.Timestamp.Format(time.RFC3339Nano),
	}
}

func (h *Handler) handleTestLLM(w http.ResponseWriter, r *http.Request) {
	answer, err := h.uc.ProbeLLM(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "llm probe failed",
			"correlation_id", correlationFrom(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorDetail(err)})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer, Status: statusSuccess})
}

func (h *Handler) handleTestDB(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.ProbeStore(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "store probe failed",
			"correlation_id", correlationFrom(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorDetail(err)})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: msgDBSuccessful})
}

func errorDetail(err error) string {
	var uerr *usecase.Error
	if errors.As(err, &uerr) {
		return uerr.Detail()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
