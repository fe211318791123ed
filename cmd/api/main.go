package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/cache"
	"github.com/mediascope/researcher/internal/config"
	"github.com/mediascope/researcher/internal/corpus"
	"github.com/mediascope/researcher/internal/events"
	httpserver "github.com/mediascope/researcher/internal/http"
	"github.com/mediascope/researcher/internal/http/handlers"
	"github.com/mediascope/researcher/internal/queue"
	"github.com/mediascope/researcher/internal/repository"
	"github.com/mediascope/researcher/internal/research"
	"github.com/mediascope/researcher/internal/service"
	"github.com/mediascope/researcher/internal/web"
	"github.com/mediascope/researcher/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[researcher] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	generator, err := ai.NewClient(ai.ClientConfig{
		APIKey:       cfg.OpenRouterAPIKey,
		BaseURL:      cfg.OpenRouterBaseURL,
		DefaultModel: cfg.ModelPlanPrimary,
		Timeout:      time.Duration(cfg.OpenRouterTimeoutMS) * time.Millisecond,
		MaxRetries:   cfg.OpenRouterMaxRetries,
	})
	if err != nil {
		logger.Fatalf("failed to initialize model client: %v", err)
	}
	modelRouter := ai.NewModelRouter(ai.ModelRouterConfig{
		PlanPrimary:     cfg.ModelPlanPrimary,
		PlanFallback:    cfg.ModelPlanFallback,
		DecidePrimary:   cfg.ModelDecidePrimary,
		DecideFallback:  cfg.ModelDecideFallback,
		CompilePrimary:  cfg.ModelCompilePrimary,
		CompileFallback: cfg.ModelCompileFallback,
	})

	webSearch := web.NewSearchClient(web.SearchClientConfig{
		BaseURL:    cfg.SearxngURL,
		Timeout:    time.Duration(cfg.WebSearchTimeoutMS) * time.Millisecond,
		MaxResults: cfg.WebSearchMaxHits,
		Logger:     logger,
	})
	webReader := web.NewReaderClient(web.ReaderClientConfig{
		BaseURL: cfg.WebreaderURL,
		Timeout: time.Duration(cfg.WebReaderTimeoutMS) * time.Millisecond,
		Logger:  logger,
	})

	bus := events.NewBus(cfg.StreamBufferSize)
	researchService := service.NewResearchService(repo, producer)
	api := handlers.NewAPI(researchService, repo, bus, webSearch, webReader)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		startWorker(ctx, cfg, logger, consumer, repo, bus, generator, modelRouter, webSearch, webReader)
	} else {
		logger.Printf("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// SSE responses flush for the lifetime of a run, so writes are
		// unbounded and only reads carry a deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func startWorker(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
	consumer queue.Consumer,
	repo repository.TasksRepository,
	bus *events.Bus,
	generator ai.TextGenerator,
	modelRouter *ai.ModelRouter,
	webSearch *web.SearchClient,
	webReader *web.ReaderClient,
) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, worker cannot search the corpus and stays off")
		return
	}

	embedCache := cache.NewEmbeddingCache(cache.Config{
		TTL:        time.Duration(cfg.EmbedCacheTTLSeconds) * time.Second,
		MaxEntries: cfg.EmbedCacheMaxEntries,
	})
	embedder, err := ai.NewOpenAIEmbedder(ai.EmbedderConfig{
		BaseURL: cfg.EmbedderBaseURL,
		APIKey:  cfg.OpenRouterAPIKey,
		Model:   cfg.EmbedderModel,
		Timeout: time.Duration(cfg.EmbedderTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Printf("embedder unavailable, semantic search degrades to keyword: %v", err)
	}

	store, err := corpus.NewStore(ctx, cfg.DatabaseURL, corpus.StoreConfig{
		Embedder:        embedder,
		EmbedCache:      embedCache,
		EmbedModel:      cfg.EmbedderModel,
		FusionSmoothing: cfg.FusionSmoothing,
		Logger:          logger,
	})
	if err != nil {
		logger.Printf("failed to initialize corpus store, worker stays off: %v", err)
		return
	}

	orchestrator := research.NewOrchestrator(research.Config{
		MaxIterations:      cfg.MaxIterations,
		SearchLimit:        cfg.SearchLimit,
		WebReadMaxPages:    cfg.WebReadMaxPages,
		CompileHintSources: cfg.CompileHintSources,
		MinRankedArticles:  cfg.MinRankedArticles,
		MaxRankedArticles:  cfg.MaxRankedArticles,
		WebSearchEnabled:   cfg.WebSearchEnabled,
		Logger:             logger,
	}, generator, modelRouter, store, webSearch, webReader)

	processor := worker.NewProcessor(consumer, repo, orchestrator, bus, logger)
	go func() {
		defer store.Close()
		processor.Start(ctx)
	}()
	logger.Printf("worker enabled and started")
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.TasksRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryTasksRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresTasksRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryTasksRepository(), func() {}
	}
	if err := pgRepo.EnsureSchema(ctx); err != nil {
		logger.Printf("failed to ensure research_tasks schema, fallback to memory: %v", err)
		pgRepo.Close()
		return repository.NewMemoryTasksRepository(), func() {}
	}
	logger.Printf("postgres repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}
	logger.Printf("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}
