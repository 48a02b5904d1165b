package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fly2any-growth/internal/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// BatchRequest is the body of POST /v1/decisions/batch.
type BatchRequest struct {
	UserIDs []string `json:"user_ids"`
}

// BatchResponse is the response of POST /v1/decisions/batch. Decisions align with the request's user_ids.
type BatchResponse struct {
	Decisions []domain.GrowthDecision `json:"decisions"`
}

// EventResponse is the response of POST /v1/events. Flow is null when no flow was executed.
type EventResponse struct {
	Flow *domain.RetentionFlow `json:"flow"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "running",
		"started": h.started,
		"uptime":  h.now().Sub(h.started).String(),
	}
	if h.status != nil {
		for k, v := range h.status() {
			resp[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getDecision(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Evaluate(r.Context(), userID))
}

func (h *Handler) invalidateDecision(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	h.engine.InvalidateCache(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getFlows(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetFlowMetrics(r.Context(), userID))
}

func (h *Handler) batchEvaluate(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_ids must not be empty")
		return
	}
	if len(req.UserIDs) > h.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE", "too many user_ids")
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Decisions: h.engine.BatchEvaluate(r.Context(), req.UserIDs)})
}

func (h *Handler) processEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.RetentionEvent
	if !decodeBody(w, r, &ev) {
		return
	}
	if strings.TrimSpace(ev.UserID) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}
	if ev.ID == "" {
		ev.ID = h.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now()
	}
	writeJSON(w, http.StatusOK, EventResponse{Flow: h.engine.ProcessEvent(r.Context(), ev)})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user id is required")
		return "", false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		}
		return false
	}
	return true
}
