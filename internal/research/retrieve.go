package research

import (
	"context"

	"github.com/mediascope/researcher/internal/corpus"
	"github.com/mediascope/researcher/internal/domain"
)

// searchCorpus runs the planned corpus queries sequentially, deduplicating
// article IDs against everything found so far. A failed query contributes
// zero results and never aborts the round.
func (o *Orchestrator) searchCorpus(ctx context.Context, state *State, sink EventSink) Update {
	exclude := state.foundIDSet()
	var newIDs []int64

	for _, planned := range state.PlannedCorpus {
		emit(sink, domain.StatusEvent(domain.StatusSearching, map[string]any{
			"query":     planned.Query,
			"mode":      string(planned.Mode),
			"iteration": state.Iteration,
		}))

		region := planned.Region
		if region == "" {
			region = state.Filters.Region
		}
		params := corpus.SearchParams{
			Limit:      o.config.SearchLimit,
			Region:     region,
			DateFrom:   state.Filters.DateFrom,
			DateTo:     state.Filters.DateTo,
			ExcludeIDs: excludeList(exclude),
		}

		var (
			results []domain.ArticleRecord
			err     error
		)
		switch planned.Mode {
		case domain.SearchModeKeyword:
			results, err = o.corpus.KeywordSearch(ctx, planned.Query, params)
		case domain.SearchModeSemantic:
			results, err = o.corpus.SemanticSearch(ctx, planned.Query, params)
		default:
			results, err = o.corpus.HybridSearch(ctx, planned.Query, params)
		}
		if err != nil {
			o.logf("corpus search %q (%s) failed: %v", planned.Query, planned.Mode, err)
			results = nil
		} else {
			o.logf("corpus search %q (%s): %d results", planned.Query, planned.Mode, len(results))
		}

		batch := make([]int64, 0, len(results))
		for _, record := range results {
			if _, dup := exclude[record.ID]; dup {
				continue
			}
			exclude[record.ID] = struct{}{}
			batch = append(batch, record.ID)
		}
		newIDs = append(newIDs, batch...)

		emit(sink, domain.StatusEvent(domain.StatusFound, map[string]any{
			"query":        planned.Query,
			"new_articles": len(batch),
			"total":        len(exclude),
		}))
	}

	return Update{FoundIDs: newIDs}
}

// searchWeb runs the planned web queries, keeping the first occurrence of
// each URL. Web search is best-effort and contributes nothing on failure.
func (o *Orchestrator) searchWeb(ctx context.Context, state *State, sink EventSink) Update {
	if len(state.PlannedWeb) == 0 {
		return Update{}
	}

	seen := make(map[string]struct{}, len(state.WebResults))
	for _, result := range state.WebResults {
		seen[result.URL] = struct{}{}
	}
	total := len(state.WebResults)
	var newResults []domain.WebSearchResult

	for _, planned := range state.PlannedWeb {
		emit(sink, domain.StatusEvent(domain.StatusWebSearching, map[string]any{
			"query": planned.Query,
		}))

		results := o.webSearch.Search(ctx, planned.Query, planned.Language)
		fresh := 0
		for _, result := range results {
			if _, dup := seen[result.URL]; dup {
				continue
			}
			seen[result.URL] = struct{}{}
			newResults = append(newResults, result)
			fresh++
		}
		total += fresh

		emit(sink, domain.StatusEvent(domain.StatusWebFound, map[string]any{
			"query":       planned.Query,
			"new_results": fresh,
			"total":       total,
		}))
	}

	return Update{WebResults: newResults}
}

func excludeList(set map[int64]struct{}) []int64 {
	if len(set) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
