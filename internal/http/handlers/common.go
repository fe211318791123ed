package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mediascope/researcher/internal/events"
	"github.com/mediascope/researcher/internal/http/middleware"
	"github.com/mediascope/researcher/internal/repository"
	"github.com/mediascope/researcher/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

// HealthProber reports whether a web collaborator is reachable.
type HealthProber interface {
	Configured() bool
	Healthy(ctx context.Context) bool
}

type API struct {
	research    *service.ResearchService
	repo        repository.TasksRepository
	bus         *events.Bus
	webSearch   HealthProber
	webReader   HealthProber
	idempotency *idempotencyStore
}

func NewAPI(
	research *service.ResearchService,
	repo repository.TasksRepository,
	bus *events.Bus,
	webSearch HealthProber,
	webReader HealthProber,
) *API {
	return &API{
		research:    research,
		repo:        repo,
		bus:         bus,
		webSearch:   webSearch,
		webReader:   webReader,
		idempotency: newIdempotencyStore(),
	}
}

type researchRequest struct {
	Query   string `json:"query"`
	Filters struct {
		Region   string `json:"region,omitempty"`
		DateFrom string `json:"date_from,omitempty"`
		DateTo   string `json:"date_to,omitempty"`
	} `json:"filters"`
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

func validateResearchRequest(request researchRequest) error {
	query := strings.TrimSpace(request.Query)
	if query == "" || len(query) > 1024 {
		return errInvalidPayload
	}
	if err := validateOptionalDate(request.Filters.DateFrom); err != nil {
		return err
	}
	return validateOptionalDate(request.Filters.DateTo)
}

func validateOptionalDate(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	TaskID      string
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		TaskID:      taskID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
