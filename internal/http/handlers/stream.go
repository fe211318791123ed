package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/repository"
)

const streamHeartbeat = 15 * time.Second

// ResearchStream serves GET /v1/research/{id}/stream as Server-Sent Events.
// Running tasks attach live to the event bus; finished tasks replay their
// persisted events followed by the result and a synthetic done.
func (api *API) ResearchStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	taskID := taskIDFromPath(r.URL.Path)
	if taskID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "task id is required")
		return
	}

	task, err := api.repo.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "research task not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load research task")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected to task %s\n\n", taskID)
	flusher.Flush()

	if task.Status != domain.TaskStatusRunning {
		api.replayEvents(w, flusher, task)
		return
	}
	api.streamLive(w, r, flusher, taskID)
}

func (api *API) replayEvents(w http.ResponseWriter, flusher http.Flusher, task *domain.ResearchTask) {
	for _, event := range task.Events {
		writeSSEEvent(w, event)
	}
	if task.Status == domain.TaskStatusComplete && task.Report != nil && !containsResult(task.Events) {
		writeSSEEvent(w, domain.NewEvent(domain.EventResult, map[string]any{
			"report":   task.Report,
			"articles": task.Articles,
		}))
	}
	writeSSEEvent(w, domain.DoneEvent())
	flusher.Flush()
}

func (api *API) streamLive(w http.ResponseWriter, r *http.Request, flusher http.Flusher, taskID string) {
	subscriber := api.bus.Subscribe(taskID)
	defer api.bus.Unsubscribe(taskID, subscriber)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, open := <-subscriber:
			if !open {
				// The worker finished and closed the stream.
				writeSSEEvent(w, domain.DoneEvent())
				flusher.Flush()
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
			if event.Type == domain.EventDone {
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event domain.Event) {
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", string(event.Data))
}

func containsResult(events []domain.Event) bool {
	for _, event := range events {
		if event.Type == domain.EventResult {
			return true
		}
	}
	return false
}
