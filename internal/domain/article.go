package domain

import "time"

// ArticleRecord is a normalized corpus item. Records are read-only once
// fetched from the corpus store for the duration of a task.
type ArticleRecord struct {
	ID              int64     `json:"id"`
	OriginalTitle   string    `json:"original_title,omitempty"`
	TranslatedTitle string    `json:"translated_title,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	Summary         string    `json:"summary,omitempty"`
	Bullets         []string  `json:"bullets,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Sentiment       string    `json:"sentiment,omitempty"`
	URL             string    `json:"url,omitempty"`
	SourceName      string    `json:"source_name,omitempty"`
	Region          string    `json:"region,omitempty"`
}

// Title returns the translated title with the original as fallback.
func (a ArticleRecord) Title() string {
	if a.TranslatedTitle != "" {
		return a.TranslatedTitle
	}
	return a.OriginalTitle
}

// WebSearchResult is one hit returned by the web search collaborator.
type WebSearchResult struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Engine  string  `json:"engine,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// WebPageRecord is the read-and-summarize outcome for one URL. It is
// produced at most once per URL per task and never overwritten.
type WebPageRecord struct {
	URL       string   `json:"url"`
	Title     string   `json:"title,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"`
	Success   bool     `json:"success"`
	ErrorMsg  string   `json:"error,omitempty"`
}
