package research

import (
	"context"
	"fmt"

	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/web"
)

// read fetches summaries for newly found corpus articles and sends the top
// unread web URLs to the page reader, within the per-round page budget.
func (o *Orchestrator) read(ctx context.Context, state *State, sink EventSink) (Update, error) {
	update := Update{}

	var unreadIDs []int64
	for _, id := range state.FoundIDs {
		if _, held := state.Summaries[id]; !held {
			unreadIDs = append(unreadIDs, id)
		}
	}
	if len(unreadIDs) > 0 {
		emit(sink, domain.StatusEvent(domain.StatusReading, map[string]any{"count": len(unreadIDs)}))

		fetched, err := o.corpus.FetchSummaries(ctx, unreadIDs)
		if err != nil {
			return Update{}, fmt.Errorf("fetch article summaries: %w", err)
		}
		update.Summaries = fetched
	}

	tried := state.triedURLSet()
	var requests []web.ReadRequest
	for _, result := range state.WebResults {
		if len(requests) >= o.config.WebReadMaxPages {
			break
		}
		if _, held := state.WebPages[result.URL]; held {
			continue
		}
		if _, attempted := tried[result.URL]; attempted {
			continue
		}
		requests = append(requests, web.ReadRequest{URL: result.URL, Query: state.Query})
	}

	if len(requests) > 0 {
		emit(sink, domain.StatusEvent(domain.StatusWebReading, map[string]any{"count": len(requests)}))

		pages := o.reader.ReadBatch(ctx, requests)

		succeeded := 0
		for _, page := range pages {
			if page.Success {
				succeeded++
			}
		}
		emit(sink, domain.StatusEvent(domain.StatusWebRead, map[string]any{
			"count": succeeded,
			"total": len(requests),
		}))

		update.WebPages = pages
		// Every attempted URL counts as tried, success or not.
		urls := make([]string, 0, len(requests))
		for _, request := range requests {
			urls = append(urls, request.URL)
		}
		update.URLsTried = urls
	}

	return update, nil
}
