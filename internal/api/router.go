package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hearthlabs/kinship/internal/api/handlers"
	mw "github.com/hearthlabs/kinship/internal/api/middleware"
	"github.com/hearthlabs/kinship/internal/buildconfig"
	"github.com/hearthlabs/kinship/internal/config"
	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/embedding"
	"github.com/hearthlabs/kinship/internal/llm"
	"github.com/hearthlabs/kinship/internal/service"
	"github.com/hearthlabs/kinship/internal/store"
)

// App holds the router and request metrics for lifecycle management.
type App struct {
	Router   *chi.Mux
	Pipeline *service.PipelineService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	personStore := store.NewPersonStore(db)
	familyStore := store.NewFamilyStore(db)
	relationshipStore := store.NewRelationshipStore(db)
	mentionStore := store.NewMentionStore(db)
	trajectoryStore := store.NewTrajectoryStore(db)

	// External clients via provider factory
	llmProvider := config.LLMProvider()
	embeddingProvider := config.EmbeddingProvider()

	extractor, err := llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("extraction provider initialization failed", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("extraction provider initialized", zap.String("provider", llmProvider))
	}

	embedder, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Services
	resolver := service.NewDuplicateResolver(service.NewSimilarityScorer(), service.ResolverConfig{
		CandidateThreshold: config.CandidateThreshold(),
		AutoMergeThreshold: config.AutoMergeThreshold(),
		AmbiguityGap:       config.AmbiguityGap(),
	}, logger)
	grouping := service.NewFamilyGroupingEngine(logger)

	pipelineSvc := service.NewPipelineService(personStore, familyStore, relationshipStore, resolver, grouping, logger)
	pipelineSvc.SetDedupWorkers(config.DedupWorkers())
	pipelineSvc.SetTrajectoryStore(trajectoryStore)
	if extractor != nil {
		pipelineSvc.SetExtractionProvider(extractor)
	}
	if embedder != nil {
		pipelineSvc.SetMentionArchive(mentionStore, embedder)
	}

	// Handlers
	pipelineHandler := handlers.NewPipelineHandler(pipelineSvc)
	personHandler := handlers.NewPersonHandler(personStore, relationshipStore, mentionStore)
	familyHandler := handlers.NewFamilyHandler(familyStore, personStore)
	mentionHandler := handlers.NewMentionHandler(mentionStore, embedder)
	trajectoryHandler := handlers.NewTrajectoryHandler(trajectoryStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Pipeline:  pipelineSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		// Pipeline
		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/process", pipelineHandler.ProcessText)
			r.Post("/run", pipelineHandler.Run)
		})

		// Persons
		r.Route("/persons", func(r chi.Router) {
			r.Get("/search", personHandler.Search)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", personHandler.GetByID)
				r.Get("/mentions", personHandler.Mentions)
			})
		})

		// Families
		r.Route("/families", func(r chi.Router) {
			r.Get("/", familyHandler.List)
			r.Get("/preview", familyHandler.PreviewCode)
			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", familyHandler.GetByCode)
				r.Get("/members", familyHandler.Members)
			})
		})

		// Mentions
		r.Get("/mentions/search", mentionHandler.Search)

		// Sessions
		r.Get("/sessions/{id}/trajectory", trajectoryHandler.GetBySession)
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage no lifecycle.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.PersonStore        = (*store.PersonStore)(nil)
	_ domain.FamilyStore        = (*store.FamilyStore)(nil)
	_ domain.RelationshipStore  = (*store.RelationshipStore)(nil)
	_ domain.MentionStore       = (*store.MentionStore)(nil)
	_ domain.TrajectoryStore    = (*store.TrajectoryStore)(nil)
	_ domain.EmbeddingClient    = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient    = (*embedding.MockClient)(nil)
	_ domain.ExtractionProvider = (*llm.OpenAIClient)(nil)
	_ domain.ExtractionProvider = (*llm.AnthropicClient)(nil)
	_ domain.ExtractionProvider = (*llm.GeminiClient)(nil)
	_ domain.ExtractionProvider = (*llm.CerebrasClient)(nil)
	_ domain.ExtractionProvider = (*llm.MockClient)(nil)
	_ service.Resolver          = (*service.DuplicateResolver)(nil)
	_ service.GroupingEngine    = (*service.FamilyGroupingEngine)(nil)
)
