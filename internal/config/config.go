package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and research workers.
type Config struct {
	Port string

	DatabaseURL string

	OpenRouterAPIKey     string
	OpenRouterBaseURL    string
	OpenRouterTimeoutMS  int
	OpenRouterMaxRetries int
	ModelPlanPrimary     string
	ModelPlanFallback    string
	ModelDecidePrimary   string
	ModelDecideFallback  string
	ModelCompilePrimary  string
	ModelCompileFallback string

	EmbedderBaseURL   string
	EmbedderModel     string
	EmbedderTimeoutMS int

	EmbedCacheTTLSeconds int
	EmbedCacheMaxEntries int

	SearxngURL         string
	WebreaderURL       string
	WebSearchEnabled   bool
	WebSearchTimeoutMS int
	WebReaderTimeoutMS int
	WebSearchMaxHits   int
	WebReadMaxPages    int

	MaxIterations      int
	SearchLimit        int
	FusionSmoothing    int
	CompileHintSources int
	MinRankedArticles  int
	MaxRankedArticles  int
	StreamBufferSize   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenRouterAPIKey:     getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterTimeoutMS:  getEnvInt("OPENROUTER_TIMEOUT_MS", 120000),
		OpenRouterMaxRetries: getEnvInt("OPENROUTER_MAX_RETRIES", 2),
		ModelPlanPrimary:     getEnv("MODEL_PLAN_PRIMARY", "deepseek/deepseek-v3.2"),
		ModelPlanFallback:    getEnv("MODEL_PLAN_FALLBACK", "deepseek/deepseek-chat"),
		ModelDecidePrimary:   getEnv("MODEL_DECIDE_PRIMARY", "deepseek/deepseek-v3.2"),
		ModelDecideFallback:  getEnv("MODEL_DECIDE_FALLBACK", "deepseek/deepseek-chat"),
		ModelCompilePrimary:  getEnv("MODEL_COMPILE_PRIMARY", "deepseek/deepseek-v3.2"),
		ModelCompileFallback: getEnv("MODEL_COMPILE_FALLBACK", "deepseek/deepseek-chat"),

		EmbedderBaseURL:   getEnv("EMBEDDER_BASE_URL", "http://localhost:8000/v1"),
		EmbedderModel:     getEnv("EMBEDDER_MODEL", "text-embedding-3-small"),
		EmbedderTimeoutMS: getEnvInt("EMBEDDER_TIMEOUT_MS", 30000),

		EmbedCacheTTLSeconds: getEnvInt("EMBED_CACHE_TTL_SECONDS", 900),
		EmbedCacheMaxEntries: getEnvInt("EMBED_CACHE_MAX_ENTRIES", 2000),

		SearxngURL:         getEnv("SEARXNG_URL", ""),
		WebreaderURL:       getEnv("WEBREADER_URL", ""),
		WebSearchEnabled:   getEnvBool("WEB_SEARCH_ENABLED", true),
		WebSearchTimeoutMS: getEnvInt("WEB_SEARCH_TIMEOUT_MS", 30000),
		WebReaderTimeoutMS: getEnvInt("WEB_READER_TIMEOUT_MS", 120000),
		WebSearchMaxHits:   getEnvInt("WEB_SEARCH_MAX_HITS", 10),
		WebReadMaxPages:    getEnvInt("WEB_READ_MAX_PAGES", 5),

		MaxIterations:      getEnvInt("RESEARCH_MAX_ITERATIONS", 8),
		SearchLimit:        getEnvInt("RESEARCH_SEARCH_LIMIT", 50),
		FusionSmoothing:    getEnvInt("RESEARCH_FUSION_SMOOTHING", 60),
		CompileHintSources: getEnvInt("RESEARCH_COMPILE_HINT_SOURCES", 20),
		MinRankedArticles:  getEnvInt("RESEARCH_MIN_RANKED_ARTICLES", 10),
		MaxRankedArticles:  getEnvInt("RESEARCH_MAX_RANKED_ARTICLES", 15),
		StreamBufferSize:   getEnvInt("RESEARCH_STREAM_BUFFER", 256),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "research_tasks"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "research_tasks_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "research_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "*"),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key, fallback string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	items := make([]string, 0, 4)
	for _, raw := range strings.Split(value, ",") {
		item := strings.TrimSpace(raw)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
