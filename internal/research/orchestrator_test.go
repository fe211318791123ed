package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/corpus"
	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/web"
)

type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (g *fakeGenerator) next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls >= len(g.responses) {
		return "", fmt.Errorf("no scripted response for call %d", g.calls)
	}
	response := g.responses[g.calls]
	g.calls++
	return response, nil
}

func (g *fakeGenerator) Generate(ctx context.Context, request ai.GenerateRequest) (ai.GenerateResult, error) {
	text, err := g.next()
	if err != nil {
		return ai.GenerateResult{}, err
	}
	return ai.GenerateResult{Text: text, ModelID: request.Model}, nil
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, request ai.GenerateRequest, onDelta func(string)) (ai.GenerateResult, error) {
	result, err := g.Generate(ctx, request)
	if err != nil {
		return ai.GenerateResult{}, err
	}
	if onDelta != nil {
		onDelta(result.Text)
	}
	return result, nil
}

type corpusCall struct {
	query  string
	mode   string
	params corpus.SearchParams
}

type fakeCorpus struct {
	mu      sync.Mutex
	results map[string][]domain.ArticleRecord
	calls   []corpusCall
	fetched [][]int64
}

func (c *fakeCorpus) search(query, mode string, params corpus.SearchParams) ([]domain.ArticleRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, corpusCall{query: query, mode: mode, params: params})
	return c.results[query], nil
}

func (c *fakeCorpus) KeywordSearch(ctx context.Context, query string, params corpus.SearchParams) ([]domain.ArticleRecord, error) {
	return c.search(query, "keyword", params)
}

func (c *fakeCorpus) SemanticSearch(ctx context.Context, query string, params corpus.SearchParams) ([]domain.ArticleRecord, error) {
	return c.search(query, "semantic", params)
}

func (c *fakeCorpus) HybridSearch(ctx context.Context, query string, params corpus.SearchParams) ([]domain.ArticleRecord, error) {
	return c.search(query, "hybrid", params)
}

func (c *fakeCorpus) FetchSummaries(ctx context.Context, ids []int64) (map[int64]domain.ArticleRecord, error) {
	c.mu.Lock()
	c.fetched = append(c.fetched, ids)
	c.mu.Unlock()

	out := make(map[int64]domain.ArticleRecord, len(ids))
	for _, id := range ids {
		out[id] = domain.ArticleRecord{
			ID:              id,
			TranslatedTitle: fmt.Sprintf("Article %d", id),
			Summary:         fmt.Sprintf("Summary %d", id),
			Region:          "jp",
		}
	}
	return out, nil
}

type fakeWebSearch struct {
	healthy bool
	results map[string][]domain.WebSearchResult
}

func (w *fakeWebSearch) Configured() bool                 { return true }
func (w *fakeWebSearch) Healthy(ctx context.Context) bool { return w.healthy }

func (w *fakeWebSearch) Search(ctx context.Context, query, language string) []domain.WebSearchResult {
	return w.results[query]
}

type fakeReader struct {
	mu      sync.Mutex
	healthy bool
	batches [][]web.ReadRequest
}

func (r *fakeReader) Configured() bool                 { return true }
func (r *fakeReader) Healthy(ctx context.Context) bool { return r.healthy }

func (r *fakeReader) ReadBatch(ctx context.Context, requests []web.ReadRequest) map[string]domain.WebPageRecord {
	r.mu.Lock()
	r.batches = append(r.batches, requests)
	r.mu.Unlock()

	out := make(map[string]domain.WebPageRecord, len(requests))
	for _, request := range requests {
		out[request.URL] = domain.WebPageRecord{
			URL:     request.URL,
			Title:   "Page " + request.URL,
			Summary: "web summary",
			Success: true,
		}
	}
	return out
}

type eventCollector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *eventCollector) sink(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) statusKinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kinds []string
	for _, event := range c.events {
		if event.Type != domain.EventStatus {
			continue
		}
		var payload struct {
			Kind string `json:"type"`
		}
		_ = json.Unmarshal(event.Data, &payload)
		kinds = append(kinds, payload.Kind)
	}
	return kinds
}

func (c *eventCollector) countType(eventType domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, event := range c.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func articles(ids ...int64) []domain.ArticleRecord {
	out := make([]domain.ArticleRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ArticleRecord{ID: id})
	}
	return out
}

func newTestOrchestrator(t *testing.T, config Config, generator ai.TextGenerator, store CorpusSearcher, search WebSearcher, reader PageReader) *Orchestrator {
	t.Helper()
	router := ai.NewModelRouter(ai.ModelRouterConfig{})
	return NewOrchestrator(config, generator, router, store, search, reader)
}

const compileResponse = `{
	"summary": "Solar adoption is accelerating.",
	"key_findings": ["Capacity doubled"],
	"regional_perspectives": {"jp": "strong subsidies"},
	"tags": ["energy"],
	"sentiment": "positive",
	"top_articles": [
		{"article_id": 2, "relevance_reason": "core coverage"},
		{"article_id": 1, "relevance_reason": "background"}
	]
}`

func TestRunSingleIterationCompile(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "solar power growth", "mode": "hybrid"}], "reasoning": "broad pass"}`,
		`{"action": "compile", "reasoning": "enough coverage"}`,
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{
		"solar power growth": articles(1, 2, 3),
	}}

	orchestrator := newTestOrchestrator(t, Config{MaxIterations: 4, MinRankedArticles: 1}, generator, store, nil, nil)
	collector := &eventCollector{}

	outcome, err := orchestrator.Run(context.Background(), "solar power", domain.SearchFilters{Region: "jp"}, collector.sink)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	assert.Equal(t, "Solar adoption is accelerating.", outcome.Report.Summary)
	assert.Equal(t, "positive", outcome.Report.Sentiment)

	// Ranked articles follow the compiler's order, with full records attached.
	require.Len(t, outcome.Articles, 2)
	assert.Equal(t, int64(2), outcome.Articles[0].Article.ID)
	assert.Equal(t, "core coverage", outcome.Articles[0].RelevanceReason)
	assert.Equal(t, int64(1), outcome.Articles[1].Article.ID)

	require.Len(t, outcome.SearchLog, 1)
	assert.Equal(t, "broad pass", outcome.SearchLog[0].Reasoning)
	require.Len(t, outcome.SearchLog[0].CorpusPlanned, 1)

	assert.Equal(t,
		[]string{"planning", "searching", "found", "reading", "analyzing", "compiling"},
		collector.statusKinds(),
	)
	assert.Equal(t, 1, collector.countType(domain.EventResult))
	assert.Greater(t, collector.countType(domain.EventProgress), 0)

	// Region filter flows into the search.
	require.Len(t, store.calls, 1)
	assert.Equal(t, "hybrid", store.calls[0].mode)
	assert.Equal(t, "jp", store.calls[0].params.Region)
}

func TestRunIterationCeilingForcesCompile(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "angle one", "mode": "keyword"}], "reasoning": "r1"}`,
		`{"action": "expand", "reasoning": "missing context", "new_angles": ["angle two"]}`,
		`{"db_searches": [{"query": "angle two", "mode": "keyword"}], "reasoning": "r2"}`,
		`{"action": "expand", "reasoning": "still hungry"}`,
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{
		"angle one": articles(1),
		"angle two": articles(2),
	}}

	orchestrator := newTestOrchestrator(t, Config{MaxIterations: 2, MinRankedArticles: 1}, generator, store, nil, nil)
	collector := &eventCollector{}

	outcome, err := orchestrator.Run(context.Background(), "q", domain.SearchFilters{}, collector.sink)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	// Two planning rounds, then the ceiling converted the second expand vote.
	require.Len(t, outcome.SearchLog, 2)
	kinds := collector.statusKinds()
	assert.Contains(t, kinds, "expanding")
	assert.Equal(t, "compiling", kinds[len(kinds)-1])
}

func TestRunPlanParseFailureFallsBackToOriginalQuery(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		"I would suggest searching broadly.",
		`{"action": "compile", "reasoning": "done"}`,
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{
		"quantum computing": articles(1, 2),
	}}

	orchestrator := newTestOrchestrator(t, Config{MinRankedArticles: 1}, generator, store, nil, nil)
	outcome, err := orchestrator.Run(context.Background(), "quantum computing", domain.SearchFilters{}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	require.Len(t, store.calls, 1)
	assert.Equal(t, "quantum computing", store.calls[0].query)
	assert.Equal(t, "hybrid", store.calls[0].mode)
	require.Len(t, outcome.SearchLog, 1)
	assert.Equal(t, "Fallback to original query", outcome.SearchLog[0].Reasoning)
}

func TestRunDecideParseFailureCompiles(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "q1", "mode": "keyword"}], "reasoning": "r"}`,
		"definitely keep going, expand more",
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{"q1": articles(1, 2)}}

	orchestrator := newTestOrchestrator(t, Config{MinRankedArticles: 1}, generator, store, nil, nil)
	outcome, err := orchestrator.Run(context.Background(), "q", domain.SearchFilters{}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)
	assert.Len(t, outcome.SearchLog, 1)
}

func TestRunCompileParseFailureProducesFallbackReport(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "q1", "mode": "keyword"}], "reasoning": "r"}`,
		`{"action": "compile", "reasoning": "done"}`,
		"the report is: things happened",
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{"q1": articles(1, 2, 3)}}

	orchestrator := newTestOrchestrator(t, Config{MinRankedArticles: 2}, generator, store, nil, nil)
	outcome, err := orchestrator.Run(context.Background(), "storms", domain.SearchFilters{}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	assert.Contains(t, outcome.Report.Summary, "storms")
	assert.Contains(t, outcome.Report.Summary, "3 relevant articles")

	// No rankings from the model, so the list is padded in discovery order.
	require.Len(t, outcome.Articles, 3)
	assert.Equal(t, int64(1), outcome.Articles[0].Article.ID)
	assert.Equal(t, int64(2), outcome.Articles[1].Article.ID)
	assert.Empty(t, outcome.Articles[0].RelevanceReason)
}

func TestRunDeduplicatesArticlesAcrossIterations(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "first", "mode": "keyword"}], "reasoning": "r1"}`,
		`{"action": "expand", "reasoning": "more"}`,
		`{"db_searches": [{"query": "second", "mode": "keyword"}], "reasoning": "r2"}`,
		`{"action": "compile", "reasoning": "done"}`,
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{
		"first":  articles(1, 2),
		"second": articles(2, 3),
	}}

	orchestrator := newTestOrchestrator(t, Config{MinRankedArticles: 1}, generator, store, nil, nil)
	outcome, err := orchestrator.Run(context.Background(), "q", domain.SearchFilters{}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	// The second search excludes everything already found.
	require.Len(t, store.calls, 2)
	assert.ElementsMatch(t, []int64{1, 2}, store.calls[1].params.ExcludeIDs)

	// Summaries were fetched once per article.
	require.Len(t, store.fetched, 2)
	assert.Equal(t, []int64{1, 2}, store.fetched[0])
	assert.Equal(t, []int64{3}, store.fetched[1])
}

func TestRunWebUnavailableSkipsWebRetrieval(t *testing.T) {
	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "q1", "mode": "keyword"}], "web_searches": [{"query": "w1"}], "reasoning": "r"}`,
		`{"action": "compile", "reasoning": "done"}`,
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{"q1": articles(1)}}
	search := &fakeWebSearch{healthy: false}
	reader := &fakeReader{healthy: true}

	orchestrator := newTestOrchestrator(t, Config{MinRankedArticles: 1, WebSearchEnabled: true}, generator, store, search, reader)
	collector := &eventCollector{}

	outcome, err := orchestrator.Run(context.Background(), "q", domain.SearchFilters{}, collector.sink)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	assert.Empty(t, reader.batches)
	assert.NotContains(t, collector.statusKinds(), "web_searching")
	require.Len(t, outcome.SearchLog, 1)
	assert.Empty(t, outcome.SearchLog[0].WebPlanned)
}

func TestRunWebFlowRespectsPageBudget(t *testing.T) {
	webResults := make([]domain.WebSearchResult, 0, 8)
	for i := 0; i < 8; i++ {
		webResults = append(webResults, domain.WebSearchResult{
			URL:   fmt.Sprintf("https://example.org/%d", i),
			Title: fmt.Sprintf("Hit %d", i),
		})
	}

	generator := &fakeGenerator{responses: []string{
		`{"db_searches": [{"query": "q1", "mode": "keyword"}], "web_searches": [{"query": "w1", "language": "en"}], "reasoning": "r"}`,
		`{"action": "compile", "reasoning": "done"}`,
		compileResponse,
	}}
	store := &fakeCorpus{results: map[string][]domain.ArticleRecord{"q1": articles(1)}}
	search := &fakeWebSearch{healthy: true, results: map[string][]domain.WebSearchResult{"w1": webResults}}
	reader := &fakeReader{healthy: true}

	orchestrator := newTestOrchestrator(t, Config{
		MinRankedArticles: 1,
		WebSearchEnabled:  true,
		WebReadMaxPages:   3,
	}, generator, store, search, reader)
	collector := &eventCollector{}

	outcome, err := orchestrator.Run(context.Background(), "q", domain.SearchFilters{}, collector.sink)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	// Only the top three hits went to the reader.
	require.Len(t, reader.batches, 1)
	require.Len(t, reader.batches[0], 3)
	assert.Equal(t, "https://example.org/0", reader.batches[0][0].URL)
	assert.Equal(t, "q", reader.batches[0][0].Query)

	kinds := collector.statusKinds()
	assert.Contains(t, kinds, "web_searching")
	assert.Contains(t, kinds, "web_found")
	assert.Contains(t, kinds, "web_reading")
	assert.Contains(t, kinds, "web_read")
}

func TestRunContextCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	generator := &fakeGenerator{}
	orchestrator := newTestOrchestrator(t, Config{}, generator, &fakeCorpus{}, nil, nil)

	_, err := orchestrator.Run(ctx, "q", domain.SearchFilters{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankArticlesSkipsUnknownAndCaps(t *testing.T) {
	orchestrator := newTestOrchestrator(t, Config{MinRankedArticles: 2, MaxRankedArticles: 3}, &fakeGenerator{}, &fakeCorpus{}, nil, nil)

	state := newState("q", domain.SearchFilters{})
	state.Apply(Update{FoundIDs: []int64{1, 2, 3, 4, 5}})
	state.Apply(Update{Summaries: map[int64]domain.ArticleRecord{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}, 4: {ID: 4}, 5: {ID: 5},
	}})

	report := &domain.CompiledReport{TopArticles: []domain.ArticleRanking{
		{ArticleID: 99, RelevanceReason: "hallucinated"},
		{ArticleID: 4, RelevanceReason: "real"},
	}}

	ranked := orchestrator.rankArticles(state, report)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(4), ranked[0].Article.ID)
	assert.Equal(t, "real", ranked[0].RelevanceReason)
	// Padding follows discovery order and never repeats article 4.
	assert.Equal(t, int64(1), ranked[1].Article.ID)
	assert.Equal(t, int64(2), ranked[2].Article.ID)
}
