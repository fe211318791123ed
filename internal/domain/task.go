package domain

import (
	"encoding/json"
	"time"
)

type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusComplete TaskStatus = "complete"
	TaskStatusError    TaskStatus = "error"
)

// SearchFilters narrows corpus searches for the whole task.
type SearchFilters struct {
	Region   string `json:"region,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

func (f SearchFilters) IsZero() bool {
	return f.Region == "" && f.DateFrom == "" && f.DateTo == ""
}

// ResearchTask is the persisted record of one research run. It is created
// with status "running" when a request arrives and mutated only by the
// worker that owns the run; once the status leaves "running" the record is
// terminal.
type ResearchTask struct {
	ID          string
	Query       string
	Filters     SearchFilters
	Status      TaskStatus
	Report      *CompiledReport
	Articles    []RankedArticle
	SearchLog   []SearchLogEntry
	Events      []Event
	ErrorMsg    string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SearchLogEntry records what one planning round decided to run.
type SearchLogEntry struct {
	Iteration     int              `json:"iteration"`
	CorpusPlanned []SearchQuery    `json:"corpus_planned"`
	WebPlanned    []WebSearchQuery `json:"web_planned"`
	Reasoning     string           `json:"reasoning"`
}

type SearchMode string

const (
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeHybrid   SearchMode = "hybrid"
)

// SearchQuery is one planned corpus search.
type SearchQuery struct {
	Query  string     `json:"query"`
	Mode   SearchMode `json:"mode"`
	Region string     `json:"region,omitempty"`
}

// WebSearchQuery is one planned web search.
type WebSearchQuery struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
}

// TaskListItem is the trimmed task shape returned by list queries.
type TaskListItem struct {
	ID          string
	Query       string
	Status      TaskStatus
	ErrorMsg    string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type TaskListFilter struct {
	Page     int
	PageSize int
}

// SubmissionMessage is the transport format sent to queue backends when a
// research task is submitted.
type SubmissionMessage struct {
	TaskID      string          `json:"task_id"`
	Query       string          `json:"query"`
	Filters     SearchFilters   `json:"filters"`
	Attempt     int             `json:"attempt"`
	RequestedAt time.Time       `json:"requested_at"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}
