package research

import (
	"context"
	"time"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/domain"
)

type decideOutput struct {
	Action    string   `json:"action"`
	Reasoning string   `json:"reasoning"`
	NewAngles []string `json:"new_angles"`
}

type decidePromptData struct {
	Today         string
	Query         string
	Iteration     int
	MaxIterations int
	ArticleCount  int
	WebCount      int
	Tried         string
	Summaries     string
	WebSummaries  string
	LastIteration bool
	EnoughSources bool
}

// decide reviews everything read so far and chooses expand or compile. The
// iteration ceiling overrides the model: the final round always compiles,
// as does any round whose verdict cannot be parsed.
func (o *Orchestrator) decide(ctx context.Context, state *State, sink EventSink) (Update, error) {
	emit(sink, domain.StatusEvent(domain.StatusAnalyzing, map[string]any{"iteration": state.Iteration}))

	prompt, err := renderPrompt(decidePrompt, decidePromptData{
		Today:         time.Now().UTC().Format("2006-01-02"),
		Query:         state.Query,
		Iteration:     state.Iteration,
		MaxIterations: o.config.MaxIterations,
		ArticleCount:  len(state.Summaries),
		WebCount:      len(state.WebPages),
		Tried:         jsonStrings(state.QueriesTried),
		Summaries:     decideArticleDigest(state),
		WebSummaries:  decideWebDigest(state),
		LastIteration: state.Iteration >= o.config.MaxIterations,
		EnoughSources: len(state.Summaries)+len(state.WebPages) >= o.config.CompileHintSources,
	})
	if err != nil {
		return Update{}, err
	}

	output := decideOutput{Action: decisionCompile}
	result, genErr := ai.GenerateWithProfile(
		ctx,
		o.generator,
		o.router.Select(ai.StageDecide),
		"",
		prompt,
		func(accumulated string) {
			emit(sink, domain.ProgressEvent("analyzing", accumulated))
		},
	)
	if genErr != nil {
		o.logf("decision generation failed, compiling with available data: %v", genErr)
		output.Reasoning = "Generation error, compiling with available data"
	} else if decodeErr := ai.DecodeLoose(result.Text, &output); decodeErr != nil {
		o.logf("decision output unparseable, compiling with available data: %v", decodeErr)
		output = decideOutput{Action: decisionCompile, Reasoning: "Parse error, compiling with available data"}
	}

	if output.Action != decisionExpand {
		output.Action = decisionCompile
	}
	if state.Iteration >= o.config.MaxIterations {
		output.Action = decisionCompile
	}

	if output.Action == decisionExpand {
		emit(sink, domain.StatusEvent(domain.StatusExpanding, map[string]any{
			"reasoning":   output.Reasoning,
			"new_queries": output.NewAngles,
		}))
	}

	return Update{Decision: &output.Action, NewAngles: output.NewAngles}, nil
}
