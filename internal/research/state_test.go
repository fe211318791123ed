package research

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediascope/researcher/internal/domain"
)

func TestApplyMergesPartialUpdates(t *testing.T) {
	state := newState("renewable energy", domain.SearchFilters{Region: "jp"})

	iteration := 1
	state.Apply(Update{
		Iteration:    &iteration,
		QueriesTried: []string{"renewable energy"},
		SetPlans:     true,
		PlannedCorpus: []domain.SearchQuery{
			{Query: "renewable energy", Mode: domain.SearchModeHybrid},
		},
	})
	state.Apply(Update{FoundIDs: []int64{1, 2}})
	state.Apply(Update{
		Summaries: map[int64]domain.ArticleRecord{
			1: {ID: 1, TranslatedTitle: "One"},
			2: {ID: 2, TranslatedTitle: "Two"},
		},
	})

	assert.Equal(t, 1, state.Iteration)
	assert.Equal(t, []string{"renewable energy"}, state.QueriesTried)
	assert.Equal(t, []int64{1, 2}, state.FoundIDs)
	assert.Len(t, state.Summaries, 2)
	assert.Len(t, state.PlannedCorpus, 1)
}

func TestApplyEmptyUpdateChangesNothing(t *testing.T) {
	state := newState("q", domain.SearchFilters{})
	state.Apply(Update{FoundIDs: []int64{7}})

	before := *state
	state.Apply(Update{})

	assert.Equal(t, before.Iteration, state.Iteration)
	assert.Equal(t, before.FoundIDs, state.FoundIDs)
	assert.Equal(t, before.Decision, state.Decision)
}

func TestApplyWebPagesFirstReadWins(t *testing.T) {
	state := newState("q", domain.SearchFilters{})

	state.Apply(Update{WebPages: map[string]domain.WebPageRecord{
		"https://a.example": {URL: "https://a.example", Summary: "first", Success: true},
	}})
	state.Apply(Update{WebPages: map[string]domain.WebPageRecord{
		"https://a.example": {URL: "https://a.example", Summary: "second", Success: true},
	}})

	assert.Equal(t, "first", state.WebPages["https://a.example"].Summary)
}

func TestApplyPlansReplacedEachRound(t *testing.T) {
	state := newState("q", domain.SearchFilters{})

	state.Apply(Update{
		SetPlans: true,
		PlannedCorpus: []domain.SearchQuery{
			{Query: "first round", Mode: domain.SearchModeKeyword},
		},
		PlannedWeb: []domain.WebSearchQuery{{Query: "first round web"}},
	})
	state.Apply(Update{
		SetPlans: true,
		PlannedCorpus: []domain.SearchQuery{
			{Query: "second round", Mode: domain.SearchModeSemantic},
		},
	})

	assert.Len(t, state.PlannedCorpus, 1)
	assert.Equal(t, "second round", state.PlannedCorpus[0].Query)
	assert.Empty(t, state.PlannedWeb)
}

func TestSearchLogAppends(t *testing.T) {
	state := newState("q", domain.SearchFilters{})

	state.Apply(Update{SearchLogEntry: &domain.SearchLogEntry{Iteration: 1, Reasoning: "broad pass"}})
	state.Apply(Update{SearchLogEntry: &domain.SearchLogEntry{Iteration: 2, Reasoning: "narrow pass"}})

	assert.Len(t, state.SearchLog, 2)
	assert.Equal(t, "broad pass", state.SearchLog[0].Reasoning)
	assert.Equal(t, 2, state.SearchLog[1].Iteration)
}
