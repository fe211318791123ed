package ai

import "strings"

// Stage identifies the research stage asking for a completion. Each stage
// carries its own model pair and sampling profile.
type Stage string

const (
	StagePlan    Stage = "plan"
	StageDecide  Stage = "decide"
	StageCompile Stage = "compile"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	PlanPrimary  string
	PlanFallback string

	DecidePrimary  string
	DecideFallback string

	CompilePrimary  string
	CompileFallback string
}

type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.PlanPrimary) == "" {
		config.PlanPrimary = "deepseek/deepseek-v3.2"
	}
	if strings.TrimSpace(config.PlanFallback) == "" {
		config.PlanFallback = "deepseek/deepseek-chat"
	}
	if strings.TrimSpace(config.DecidePrimary) == "" {
		config.DecidePrimary = config.PlanPrimary
	}
	if strings.TrimSpace(config.DecideFallback) == "" {
		config.DecideFallback = config.PlanFallback
	}
	if strings.TrimSpace(config.CompilePrimary) == "" {
		config.CompilePrimary = config.PlanPrimary
	}
	if strings.TrimSpace(config.CompileFallback) == "" {
		config.CompileFallback = config.PlanFallback
	}

	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(stage Stage) ModelProfile {
	switch stage {
	case StagePlan:
		return ModelProfile{
			PrimaryModel:    r.config.PlanPrimary,
			FallbackModel:   r.config.PlanFallback,
			Temperature:     0.3,
			MaxOutputTokens: 1024,
		}
	case StageDecide:
		return ModelProfile{
			PrimaryModel:    r.config.DecidePrimary,
			FallbackModel:   r.config.DecideFallback,
			Temperature:     0.2,
			MaxOutputTokens: 1024,
		}
	case StageCompile:
		return ModelProfile{
			PrimaryModel:    r.config.CompilePrimary,
			FallbackModel:   r.config.CompileFallback,
			Temperature:     0.3,
			MaxOutputTokens: 4096,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.PlanPrimary,
			FallbackModel:   r.config.PlanFallback,
			Temperature:     0.3,
			MaxOutputTokens: 1024,
		}
	}
}
