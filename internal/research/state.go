// Package research runs the iterative research workflow: plan searches,
// retrieve from the corpus and the web, read sources, then decide whether
// to expand the search or compile the final report.
package research

import (
	"github.com/mediascope/researcher/internal/domain"
)

// State is the accumulated working memory of one research run. Only the
// runner goroutine touches it; nodes communicate through Update values.
type State struct {
	Query        string
	Filters      domain.SearchFilters
	WebAvailable bool

	Iteration    int
	QueriesTried []string

	FoundIDs  []int64
	Summaries map[int64]domain.ArticleRecord

	WebResults []domain.WebSearchResult
	WebPages   map[string]domain.WebPageRecord
	URLsTried  []string

	SearchLog []domain.SearchLogEntry

	Report         *domain.CompiledReport
	RankedArticles []domain.RankedArticle

	// Round-scoped plan and verdict, overwritten each iteration.
	PlannedCorpus []domain.SearchQuery
	PlannedWeb    []domain.WebSearchQuery
	Decision      string
	NewAngles     []string
}

func newState(query string, filters domain.SearchFilters) *State {
	return &State{
		Query:     query,
		Filters:   filters,
		Summaries: make(map[int64]domain.ArticleRecord),
		WebPages:  make(map[string]domain.WebPageRecord),
	}
}

// Update is a partial state change produced by one node. Nil fields leave
// the state untouched; slices append and maps merge, so concurrent branches
// can be joined without clobbering each other.
type Update struct {
	WebAvailable *bool
	Iteration    *int

	QueriesTried []string
	FoundIDs     []int64
	Summaries    map[int64]domain.ArticleRecord
	WebResults   []domain.WebSearchResult
	WebPages     map[string]domain.WebPageRecord
	URLsTried    []string

	SearchLogEntry *domain.SearchLogEntry

	SetPlans      bool
	PlannedCorpus []domain.SearchQuery
	PlannedWeb    []domain.WebSearchQuery

	Decision  *string
	NewAngles []string

	Report         *domain.CompiledReport
	RankedArticles []domain.RankedArticle
}

// Apply merges an update into the state.
func (s *State) Apply(update Update) {
	if update.WebAvailable != nil {
		s.WebAvailable = *update.WebAvailable
	}
	if update.Iteration != nil {
		s.Iteration = *update.Iteration
	}
	s.QueriesTried = append(s.QueriesTried, update.QueriesTried...)
	s.FoundIDs = append(s.FoundIDs, update.FoundIDs...)
	for id, record := range update.Summaries {
		s.Summaries[id] = record
	}
	s.WebResults = append(s.WebResults, update.WebResults...)
	for url, page := range update.WebPages {
		// First read wins; a URL is never re-read within a task.
		if _, seen := s.WebPages[url]; !seen {
			s.WebPages[url] = page
		}
	}
	s.URLsTried = append(s.URLsTried, update.URLsTried...)
	if update.SearchLogEntry != nil {
		s.SearchLog = append(s.SearchLog, *update.SearchLogEntry)
	}
	if update.SetPlans {
		s.PlannedCorpus = update.PlannedCorpus
		s.PlannedWeb = update.PlannedWeb
	}
	if update.Decision != nil {
		s.Decision = *update.Decision
		s.NewAngles = update.NewAngles
	}
	if update.Report != nil {
		s.Report = update.Report
	}
	if update.RankedArticles != nil {
		s.RankedArticles = update.RankedArticles
	}
}

func (s *State) triedQuery(query string) bool {
	for _, tried := range s.QueriesTried {
		if tried == query {
			return true
		}
	}
	return false
}

func (s *State) foundIDSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(s.FoundIDs))
	for _, id := range s.FoundIDs {
		set[id] = struct{}{}
	}
	return set
}

func (s *State) triedURLSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.URLsTried))
	for _, url := range s.URLsTried {
		set[url] = struct{}{}
	}
	return set
}
