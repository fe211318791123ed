package research

import (
	"context"
	"fmt"
	"time"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/domain"
)

type compilePromptData struct {
	Today         string
	Query         string
	ArticleCount  int
	WebCount      int
	Summaries     string
	WebSummaries  string
	HasWebSources bool
}

// compile produces the final report. An unparseable model response degrades
// to a minimal factual report so a run that reached this node always ends
// with a result.
func (o *Orchestrator) compile(ctx context.Context, state *State, sink EventSink) (Update, error) {
	emit(sink, domain.StatusEvent(domain.StatusCompiling, nil))

	prompt, err := renderPrompt(compilePrompt, compilePromptData{
		Today:         time.Now().UTC().Format("2006-01-02"),
		Query:         state.Query,
		ArticleCount:  len(state.Summaries),
		WebCount:      len(state.WebPages),
		Summaries:     compileArticleDigest(state),
		WebSummaries:  compileWebDigest(state),
		HasWebSources: len(state.WebPages) > 0,
	})
	if err != nil {
		return Update{}, err
	}

	report := o.generateReport(ctx, state, prompt, sink)
	ranked := o.rankArticles(state, report)

	emit(sink, domain.NewEvent(domain.EventResult, map[string]any{
		"report":   report,
		"articles": ranked,
	}))

	return Update{Report: report, RankedArticles: ranked}, nil
}

func (o *Orchestrator) generateReport(ctx context.Context, state *State, prompt string, sink EventSink) *domain.CompiledReport {
	result, err := ai.GenerateWithProfile(
		ctx,
		o.generator,
		o.router.Select(ai.StageCompile),
		"",
		prompt,
		func(accumulated string) {
			emit(sink, domain.ProgressEvent("compiling", accumulated))
		},
	)
	if err != nil {
		o.logf("report generation failed: %v", err)
		return o.fallbackReport(state)
	}

	var report domain.CompiledReport
	if err := ai.DecodeLoose(result.Text, &report); err != nil {
		o.logf("report output unparseable: %v", err)
		return o.fallbackReport(state)
	}

	clean, score, err := o.validator.ValidateReport(&report)
	if err != nil {
		o.logf("report rejected: %v", err)
		return o.fallbackReport(state)
	}
	o.logf("report compiled quality_score=%.2f findings=%d", score, len(clean.KeyFindings))
	return clean
}

func (o *Orchestrator) fallbackReport(state *State) *domain.CompiledReport {
	counts := fmt.Sprintf("Found %d articles and %d web sources.", len(state.Summaries), len(state.WebPages))
	return &domain.CompiledReport{
		Summary: fmt.Sprintf(
			"Research on %q found %d relevant articles and %d web sources.",
			state.Query, len(state.Summaries), len(state.WebPages),
		),
		KeyFindings: []string{counts},
		Tags:        []string{},
		Sentiment:   "neutral",
	}
}

// rankArticles turns the compiler's rankings into full article records,
// keeping only rankings whose summaries the run actually holds. When the
// model ranked too few, remaining articles pad the list in discovery order
// up to the configured floor; the cap bounds the final list either way.
func (o *Orchestrator) rankArticles(state *State, report *domain.CompiledReport) []domain.RankedArticle {
	ranked := make([]domain.RankedArticle, 0, o.config.MaxRankedArticles)
	included := make(map[int64]struct{})

	for _, ranking := range report.TopArticles {
		if len(ranked) >= o.config.MaxRankedArticles {
			break
		}
		record, held := state.Summaries[ranking.ArticleID]
		if !held {
			continue
		}
		if _, dup := included[ranking.ArticleID]; dup {
			continue
		}
		included[ranking.ArticleID] = struct{}{}
		ranked = append(ranked, domain.RankedArticle{Article: record, RelevanceReason: ranking.RelevanceReason})
	}

	if len(ranked) < o.config.MinRankedArticles {
		for _, id := range state.FoundIDs {
			if len(ranked) >= o.config.MaxRankedArticles {
				break
			}
			if _, dup := included[id]; dup {
				continue
			}
			record, held := state.Summaries[id]
			if !held {
				continue
			}
			included[id] = struct{}{}
			ranked = append(ranked, domain.RankedArticle{Article: record})
		}
	}

	return ranked
}
