package research

import (
	"context"
	"fmt"
	"log"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/corpus"
	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/quality"
	"github.com/mediascope/researcher/internal/web"
)

// CorpusSearcher is the corpus store surface the workflow needs.
type CorpusSearcher interface {
	KeywordSearch(ctx context.Context, query string, params corpus.SearchParams) ([]domain.ArticleRecord, error)
	SemanticSearch(ctx context.Context, query string, params corpus.SearchParams) ([]domain.ArticleRecord, error)
	HybridSearch(ctx context.Context, query string, params corpus.SearchParams) ([]domain.ArticleRecord, error)
	FetchSummaries(ctx context.Context, ids []int64) (map[int64]domain.ArticleRecord, error)
}

// WebSearcher runs best-effort web searches.
type WebSearcher interface {
	Configured() bool
	Healthy(ctx context.Context) bool
	Search(ctx context.Context, query, language string) []domain.WebSearchResult
}

// PageReader reads and summarizes web pages.
type PageReader interface {
	Configured() bool
	Healthy(ctx context.Context) bool
	ReadBatch(ctx context.Context, requests []web.ReadRequest) map[string]domain.WebPageRecord
}

// EventSink receives workflow events as they happen. Implementations must
// not block; the bus drops on slow consumers.
type EventSink func(event domain.Event)

type node string

const (
	nodeCheckAvailability node = "check_availability"
	nodePlan              node = "plan"
	nodeSearch            node = "search"
	nodeRead              node = "read"
	nodeDecide            node = "decide"
	nodeCompile           node = "compile"
	nodeDone              node = "done"
)

const (
	decisionExpand  = "expand"
	decisionCompile = "compile"
)

type Config struct {
	MaxIterations      int
	SearchLimit        int
	WebReadMaxPages    int
	CompileHintSources int
	MinRankedArticles  int
	MaxRankedArticles  int
	WebSearchEnabled   bool
	Logger             *log.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 8
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 50
	}
	if c.WebReadMaxPages <= 0 {
		c.WebReadMaxPages = 5
	}
	if c.CompileHintSources <= 0 {
		c.CompileHintSources = 20
	}
	if c.MinRankedArticles <= 0 {
		c.MinRankedArticles = 10
	}
	if c.MaxRankedArticles <= 0 {
		c.MaxRankedArticles = 15
	}
	return c
}

// Orchestrator drives one research run through the node sequence
// check_availability, plan, search, read, decide, and finally compile.
// The decide node loops back to plan until it chooses to compile or the
// iteration ceiling forces it.
type Orchestrator struct {
	config    Config
	generator ai.TextGenerator
	router    *ai.ModelRouter
	corpus    CorpusSearcher
	webSearch WebSearcher
	reader    PageReader
	validator *quality.ReportValidator
	logger    *log.Logger
}

func NewOrchestrator(
	config Config,
	generator ai.TextGenerator,
	router *ai.ModelRouter,
	corpusStore CorpusSearcher,
	webSearch WebSearcher,
	reader PageReader,
) *Orchestrator {
	config = config.withDefaults()
	return &Orchestrator{
		config:    config,
		generator: generator,
		router:    router,
		corpus:    corpusStore,
		webSearch: webSearch,
		reader:    reader,
		validator: quality.NewReportValidator(),
		logger:    config.Logger,
	}
}

// Outcome is the final product of a completed run.
type Outcome struct {
	Report    *domain.CompiledReport
	Articles  []domain.RankedArticle
	SearchLog []domain.SearchLogEntry
}

// Run executes the workflow for one query. Events stream to sink while the
// run progresses; the caller is responsible for the terminal done event.
func (o *Orchestrator) Run(ctx context.Context, query string, filters domain.SearchFilters, sink EventSink) (*Outcome, error) {
	state := newState(query, filters)
	current := nodeCheckAvailability

	for current != nodeDone {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("research run aborted at node %s: %w", current, err)
		}

		update, err := o.step(ctx, current, state, sink)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", current, err)
		}
		state.Apply(update)
		current = o.next(current, state)
	}

	return &Outcome{
		Report:    state.Report,
		Articles:  state.RankedArticles,
		SearchLog: state.SearchLog,
	}, nil
}

func (o *Orchestrator) step(ctx context.Context, current node, state *State, sink EventSink) (Update, error) {
	switch current {
	case nodeCheckAvailability:
		return o.checkAvailability(ctx, state)
	case nodePlan:
		return o.plan(ctx, state, sink)
	case nodeSearch:
		return o.search(ctx, state, sink)
	case nodeRead:
		return o.read(ctx, state, sink)
	case nodeDecide:
		return o.decide(ctx, state, sink)
	case nodeCompile:
		return o.compile(ctx, state, sink)
	default:
		return Update{}, fmt.Errorf("unknown node %q", current)
	}
}

// next encodes the transition table. Only decide branches: everything else
// has a single successor.
func (o *Orchestrator) next(current node, state *State) node {
	switch current {
	case nodeCheckAvailability:
		return nodePlan
	case nodePlan:
		return nodeSearch
	case nodeSearch:
		return nodeRead
	case nodeRead:
		return nodeDecide
	case nodeDecide:
		if state.Decision == decisionExpand {
			return nodePlan
		}
		return nodeCompile
	default:
		return nodeDone
	}
}

// checkAvailability probes the web collaborators once per run. Both must be
// healthy for web retrieval to participate.
func (o *Orchestrator) checkAvailability(ctx context.Context, state *State) (Update, error) {
	available := false
	if !o.config.WebSearchEnabled {
		o.logf("web search disabled by config")
	} else if o.webSearch == nil || o.reader == nil || !o.webSearch.Configured() || !o.reader.Configured() {
		o.logf("web collaborators not configured")
	} else {
		var searchOK bool
		readerOK := false
		done := make(chan struct{})
		go func() {
			defer close(done)
			searchOK = o.webSearch.Healthy(ctx)
		}()
		readerOK = o.reader.Healthy(ctx)
		<-done

		available = searchOK && readerOK
		o.logf("web availability: search=%t reader=%t available=%t", searchOK, readerOK, available)
	}
	return Update{WebAvailable: &available}, nil
}

// search fans out to corpus and web retrieval concurrently and joins both
// partial updates before the state merge.
func (o *Orchestrator) search(ctx context.Context, state *State, sink EventSink) (Update, error) {
	var (
		webUpdate Update
		done      = make(chan struct{})
	)
	go func() {
		defer close(done)
		webUpdate = o.searchWeb(ctx, state, sink)
	}()

	corpusUpdate := o.searchCorpus(ctx, state, sink)
	<-done

	corpusUpdate.WebResults = webUpdate.WebResults
	return corpusUpdate, nil
}

func emit(sink EventSink, event domain.Event) {
	if sink != nil {
		sink(event)
	}
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
