package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/repository"
)

func (api *API) Research(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.submitResearch(w, r)
	case http.MethodGet:
		api.listResearch(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) submitResearch(w http.ResponseWriter, r *http.Request) {
	var request researchRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if err := validateResearchRequest(request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "query is required and dates must be YYYY-MM-DD")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, exists := api.idempotency.Get(idempotencyKey); exists {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"id":          entry.TaskID,
				"status":      string(domain.TaskStatusRunning),
				"query":       request.Query,
				"accepted_at": entry.CreatedAt.Format(time.RFC3339Nano),
			})
			return
		}
	}

	filters := domain.SearchFilters{
		Region:   strings.TrimSpace(request.Filters.Region),
		DateFrom: strings.TrimSpace(request.Filters.DateFrom),
		DateTo:   strings.TrimSpace(request.Filters.DateTo),
	}
	task, err := api.research.Submit(r.Context(), strings.TrimSpace(request.Query), filters)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to submit research task")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, task.ID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     task.ID,
		"status": string(task.Status),
		"query":  task.Query,
	})
}

func (api *API) listResearch(w http.ResponseWriter, r *http.Request) {
	filter := domain.TaskListFilter{
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "page_size", 20),
	}

	items, total, err := api.research.ListTasks(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list research tasks")
		return
	}

	data := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry := map[string]any{
			"id":         item.ID,
			"query":      item.Query,
			"status":     string(item.Status),
			"created_at": item.CreatedAt,
		}
		if item.CompletedAt != nil {
			entry["completed_at"] = item.CompletedAt
		}
		if item.ErrorMsg != "" {
			entry["error"] = item.ErrorMsg
		}
		data = append(data, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": total,
		"page":  filter.Page,
	})
}

// ResearchTask serves GET /v1/research/{id}. Running tasks answer 202 with a
// trimmed body; finished tasks return the full record.
func (api *API) ResearchTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	taskID := taskIDFromPath(r.URL.Path)
	if taskID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "task id is required")
		return
	}

	task, err := api.research.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "research task not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load research task")
		return
	}

	if task.Status == domain.TaskStatusRunning {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"id":     task.ID,
			"status": string(task.Status),
			"query":  task.Query,
		})
		return
	}

	response := map[string]any{
		"id":         task.ID,
		"query":      task.Query,
		"status":     string(task.Status),
		"created_at": task.CreatedAt,
	}
	if !task.Filters.IsZero() {
		response["filters"] = task.Filters
	}
	if task.Report != nil {
		response["report"] = task.Report
	}
	if task.Articles != nil {
		response["articles"] = task.Articles
	}
	if task.SearchLog != nil {
		response["search_log"] = task.SearchLog
	}
	if task.ErrorMsg != "" {
		response["error"] = task.ErrorMsg
	}
	if task.CompletedAt != nil {
		response["completed_at"] = task.CompletedAt
	}

	writeJSON(w, http.StatusOK, response)
}

// taskIDFromPath extracts the id segment from /v1/research/{id} and
// /v1/research/{id}/stream paths.
func taskIDFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/v1/research/")
	trimmed = strings.TrimSuffix(trimmed, "/stream")
	trimmed = strings.Trim(trimmed, "/")
	if strings.Contains(trimmed, "/") {
		return ""
	}
	return strings.TrimSpace(trimmed)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
