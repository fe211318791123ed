package research

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/domain"
)

type planOutput struct {
	CorpusSearches []domain.SearchQuery    `json:"db_searches"`
	WebSearches    []domain.WebSearchQuery `json:"web_searches"`
	Reasoning      string                  `json:"reasoning"`
	// Older model outputs used a single "searches" key.
	LegacySearches []domain.SearchQuery `json:"searches"`
}

type planPromptData struct {
	Today         string
	Query         string
	Filters       string
	Iteration     int
	MaxIterations int
	FoundCount    int
	WebCount      int
	Tried         string
	Summaries     string
	WebSummaries  string
	WebAvailable  bool
}

// plan asks the model for the next round of searches. Model failures and
// unparseable output degrade to one hybrid search of the original query, so
// planning can never stall a run.
func (o *Orchestrator) plan(ctx context.Context, state *State, sink EventSink) (Update, error) {
	iteration := state.Iteration + 1

	emit(sink, domain.StatusEvent(domain.StatusPlanning, map[string]any{"iteration": iteration}))

	filtersJSON, err := json.Marshal(state.Filters)
	if err != nil {
		filtersJSON = []byte("{}")
	}
	prompt, err := renderPrompt(planPrompt, planPromptData{
		Today:         time.Now().UTC().Format("2006-01-02"),
		Query:         state.Query,
		Filters:       string(filtersJSON),
		Iteration:     iteration,
		MaxIterations: o.config.MaxIterations,
		FoundCount:    len(state.FoundIDs),
		WebCount:      len(state.WebResults),
		Tried:         jsonStrings(state.QueriesTried),
		Summaries:     planArticleDigest(state),
		WebSummaries:  planWebDigest(state),
		WebAvailable:  state.WebAvailable,
	})
	if err != nil {
		return Update{}, err
	}

	output := o.generatePlan(ctx, state, prompt, sink)
	if len(output.CorpusSearches) == 0 && len(output.LegacySearches) > 0 {
		output.CorpusSearches = output.LegacySearches
	}
	if !state.WebAvailable {
		output.WebSearches = nil
	}

	newQueries := make([]string, 0, len(output.CorpusSearches)+len(output.WebSearches))
	seen := make(map[string]struct{})
	appendNew := func(query string) {
		if _, dup := seen[query]; dup || state.triedQuery(query) {
			return
		}
		seen[query] = struct{}{}
		newQueries = append(newQueries, query)
	}
	for _, search := range output.CorpusSearches {
		appendNew(search.Query)
	}
	for _, search := range output.WebSearches {
		appendNew(search.Query)
	}

	// A first round that plans nothing new falls back to the original query.
	if len(newQueries) == 0 && iteration == 1 {
		newQueries = []string{state.Query}
		output.CorpusSearches = []domain.SearchQuery{{Query: state.Query, Mode: domain.SearchModeHybrid}}
	}

	return Update{
		Iteration:    &iteration,
		QueriesTried: newQueries,
		SearchLogEntry: &domain.SearchLogEntry{
			Iteration:     iteration,
			CorpusPlanned: output.CorpusSearches,
			WebPlanned:    output.WebSearches,
			Reasoning:     output.Reasoning,
		},
		SetPlans:      true,
		PlannedCorpus: output.CorpusSearches,
		PlannedWeb:    output.WebSearches,
	}, nil
}

func (o *Orchestrator) generatePlan(ctx context.Context, state *State, prompt string, sink EventSink) planOutput {
	result, err := ai.GenerateWithProfile(
		ctx,
		o.generator,
		o.router.Select(ai.StagePlan),
		"",
		prompt,
		func(accumulated string) {
			emit(sink, domain.ProgressEvent("planning", accumulated))
		},
	)
	if err != nil {
		o.logf("plan generation failed: %v", err)
		return o.fallbackPlan(state)
	}

	var output planOutput
	if err := ai.DecodeLoose(result.Text, &output); err != nil {
		o.logf("plan output unparseable: %v", err)
		return o.fallbackPlan(state)
	}
	return output
}

func (o *Orchestrator) fallbackPlan(state *State) planOutput {
	return planOutput{
		CorpusSearches: []domain.SearchQuery{{Query: state.Query, Mode: domain.SearchModeHybrid}},
		Reasoning:      "Fallback to original query",
	}
}
