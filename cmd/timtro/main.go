package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codingsince1985/geo-golang/openstreetmap"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/config"
	"github.com/timtro-cloud/timtro/internal/db"
	dbRedis "github.com/timtro-cloud/timtro/internal/db/redis"
	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/geo"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/geocode"
	"github.com/timtro-cloud/timtro/internal/lexicon"
	"github.com/timtro-cloud/timtro/internal/location"
	logpkg "github.com/timtro-cloud/timtro/internal/logger"
	"github.com/timtro-cloud/timtro/internal/metrics"
	"github.com/timtro-cloud/timtro/internal/repository/embcache"
	"github.com/timtro-cloud/timtro/internal/repository/popularity"
	"github.com/timtro-cloud/timtro/internal/repository/resultcache"
	searchrepo "github.com/timtro-cloud/timtro/internal/repository/search"
	chiTransport "github.com/timtro-cloud/timtro/internal/transport/chi"
	openaiProv "github.com/timtro-cloud/timtro/internal/transport/openai"
	healthuc "github.com/timtro-cloud/timtro/internal/usecase/health"
	interactionuc "github.com/timtro-cloud/timtro/internal/usecase/interaction"
	parseuc "github.com/timtro-cloud/timtro/internal/usecase/parse"
	rerankuc "github.com/timtro-cloud/timtro/internal/usecase/rerank"
	searchuc "github.com/timtro-cloud/timtro/internal/usecase/search"
	"github.com/timtro-cloud/timtro/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting timtro search API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	if err := ensureListingIndex(ctx, store, cfg.Index); err != nil {
		logger.Fatal("Failed to bootstrap listing index", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Embedder chain: OpenAI -> query cache. The cache only stores query
	// embeddings; documents are vectorized by the indexing ETL.
	embedder := buildEmbedder(cfg.Embedding, store, logger)

	// Pass nil interface (not typed nil pointer!) if embedding is not configured.
	// Go gotcha: (*CachedEmbedder)(nil) wrapped in searchuc.Embedder != nil.
	var queryEmbedder searchuc.Embedder
	if embedder != nil {
		queryEmbedder = embedder
		logger.Info("Query embedder created",
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("Embedding not configured, running lexical-only")
	}

	// Shared chat completer for parse and rerank; per-stage deadlines are
	// applied by the callers.
	var completer parseuc.Completer
	if cfg.AI.APIKey != "" {
		completer = openaiProv.NewChatCompleter(&openaiProv.ChatConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			Logger:  logger,
		})
		logger.Info("AI completer created", zap.String("model", cfg.AI.Model))
	} else {
		logger.Warn("AI not configured, parse and rerank run heuristics-only")
	}

	geocoder := geocode.New(
		geocode.NewGeoGolangProvider(openstreetmap.Geocoder()),
		store,
		geocode.Config{
			ServiceArea: geo.BoundingBox{
				MinLat: cfg.Geocode.MinLat,
				MaxLat: cfg.Geocode.MaxLat,
				MinLon: cfg.Geocode.MinLon,
				MaxLon: cfg.Geocode.MaxLon,
			},
			CacheTTL: time.Duration(cfg.Geocode.CacheTTLSec) * time.Second,
			Timeout:  time.Duration(cfg.Geocode.TimeoutMsec) * time.Millisecond,
		},
		metrics.GeocodeCacheTotal,
		logger,
	)

	lex, err := lexicon.Default()
	if err != nil {
		logger.Fatal("Failed to load amenity lexicon", zap.Error(err))
	}
	loc, err := location.Default()
	if err != nil {
		logger.Fatal("Failed to load location gazetteer", zap.Error(err))
	}

	parser, err := parseuc.New(lex, loc, completer, geocoder, parseuc.Config{
		TokenCeiling:        cfg.Search.ParseTokenCeiling,
		MinSignals:          cfg.Search.ParseMinSignals,
		AITimeout:           time.Duration(cfg.AI.ParseTimeoutMsec) * time.Millisecond,
		CacheSize:           cfg.Search.ParseCacheSize,
		DefaultRadiusMeters: float64(cfg.Search.DefaultRadius),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create query parser", zap.Error(err))
	}

	// Repositories
	searchRepo := searchrepo.New(store)
	popRepo := popularity.New(store, logger)
	resultCache := resultcache.New(store, time.Duration(cfg.Search.ResultTTLSec)*time.Second, logger)

	var rerankCompleter rerankuc.Completer
	if completer != nil {
		rerankCompleter = completer
	}
	reranker := rerankuc.New(rerankCompleter, popRepo, rerankuc.Config{
		WindowFloor:      cfg.Search.RerankWindowFloor,
		SimpleTokenMax:   cfg.Search.RerankTokenMax,
		MaxCandidates:    cfg.Search.RerankMaxCandidates,
		Timeout:          time.Duration(cfg.AI.RerankTimeoutMsec) * time.Millisecond,
		BreakerFailures:  cfg.AI.BreakerFailures,
		BreakerInterval:  time.Duration(cfg.AI.BreakerIntervalSec) * time.Second,
		BreakerCooldown:  time.Duration(cfg.AI.BreakerCooldownSec) * time.Second,
		PerRoomCap:       cfg.Search.PerRoomCap,
		PerBuildingCap:   cfg.Search.PerBuildingCap,
		PopularityWeight: cfg.Search.PopularityWeight,
	}, logger)

	searchSvc := searchuc.New(searchRepo, parser, queryEmbedder, loc, reranker, resultCache, searchuc.Config{
		MinResultsFloor: cfg.Search.MinResultsFloor,
		PrefetchPages:   cfg.Search.PrefetchPages,
		DefaultLimit:    cfg.Search.DefaultLimit,
		MaxLimit:        cfg.Search.MaxLimit,
		MaxWindow:       cfg.Search.MaxWindow,
		PriceLoosening:  cfg.Search.PriceLoosening,
	}, logger)

	interactionSvc := interactionuc.New(popRepo, logger)

	var embeddingHealth healthuc.EmbeddingChecker
	if embedder != nil {
		embeddingHealth = newEmbeddingHealthChecker(embedder)
	}
	healthSvc := healthuc.New(store, store, embeddingHealth)

	server := chiTransport.NewServer(searchSvc, interactionSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached. Returns nil
// when no API key is configured; the engine then degrades to lexical-only.
func buildEmbedder(cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) domain.Embedder {
	if cfg.APIKey == "" {
		return nil
	}

	base := openaiProv.NewEmbedder(&openaiProv.EmbedderConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    time.Duration(cfg.TimeoutMsec) * time.Millisecond,
		Provider:   "openai",
		Logger:     logger,
	})

	return embcache.New(base, store, time.Duration(cfg.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)
}

// ensureListingIndex creates the FT index if an indexing ETL has not done so
// already. Creation is idempotent across replicas: losers of the create race
// see the index as existing.
func ensureListingIndex(ctx context.Context, store db.Store, cfg config.IndexConfig) error {
	exists, err := store.IndexExists(ctx, domain.ListingIndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(domain.ListingIndexName).
		Prefix(domain.ListingKeyPrefix).
		TextWeighted(listing.FieldTitle, 5).
		TextWeighted(listing.FieldTitleFolded, 5).
		TextWeighted(listing.FieldDescription, 2).
		TextWeighted(listing.FieldDescFolded, 2).
		TextWeighted(listing.FieldUnitDescription, 1).
		TextWeighted(listing.FieldUnitDescFolded, 1).
		TextWeighted(listing.FieldAddress, 3).
		TextWeighted(listing.FieldBuildingName, 4).
		Tag(listing.FieldCategory).
		Tag(listing.FieldPostType).
		Tag(listing.FieldStatus).
		Tag(listing.FieldIsActive).
		Tag(listing.FieldFurniture).
		Tag(listing.FieldLegalStatus).
		Tag(listing.FieldPropertyType).
		Tag(listing.FieldDirection).
		Tag(listing.FieldWardCode).
		Tag(listing.FieldProvinceCode).
		Tag(listing.FieldAmenities).
		Numeric(listing.FieldPrice).
		Numeric(listing.FieldDeposit).
		Numeric(listing.FieldArea).
		Numeric(listing.FieldBedrooms).
		Numeric(listing.FieldBathrooms).
		Numeric(listing.FieldFloor).
		Numeric(listing.FieldCreatedAt).
		Geo(listing.FieldGeo).
		VectorHNSW(listing.FieldVector, cfg.VectorDim, db.DistanceCosine, cfg.HNSWM, cfg.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
