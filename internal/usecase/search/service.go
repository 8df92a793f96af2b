// Package search is the retrieval engine: it turns a parsed query into a
// bounded sequence of progressively relaxed index queries, fuses lexical and
// semantic rankings, applies the tiered boost function, and hands the scored
// window to the rerank pipeline before slicing pages.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
	"github.com/timtro-cloud/timtro/internal/metrics"
)

// Config holds the engine's tuning knobs.
type Config struct {
	// MinResultsFloor is the result count below which the next relaxation
	// phase runs.
	MinResultsFloor int
	// PrefetchPages is how many follow-up pages ride along with a response.
	PrefetchPages int
	DefaultLimit  int
	MaxLimit      int
	// MaxWindow caps the retrieval window for unlimited requests.
	MaxWindow int
	// PriceLoosening widens the price band in the minimal phase.
	PriceLoosening float64
	Weights        Weights
}

// ApplyDefaults fills unset fields with the tuned defaults.
func (c *Config) ApplyDefaults() {
	if c.MinResultsFloor <= 0 {
		c.MinResultsFloor = 10
	}
	if c.PrefetchPages <= 0 {
		c.PrefetchPages = 3
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 20
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.MaxWindow <= 0 {
		c.MaxWindow = 500
	}
	if c.PriceLoosening <= 0 {
		c.PriceLoosening = 0.15
	}
	c.Weights.ApplyDefaults()
}

// Request is one inbound search call.
type Request struct {
	RawQuery string
	// Overrides are explicit user-selected filters; they always win over
	// parser-derived values.
	Overrides *query.StructuredQuery
	// OverridesJSON is the client's raw override payload, used only for the
	// result-cache fingerprint.
	OverridesJSON []byte
	Page          int
	Limit         int
	// Unlimited returns the full window as one page with no prefetch.
	Unlimited bool
	// Strict disables relaxation: only the exact phase runs.
	Strict bool
	UserID string
}

// Service is the retrieval engine.
type Service struct {
	repo     Repository
	parser   Parser
	embedder Embedder
	loc      LocationResolver
	reranker Reranker
	cache    ResultCache
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a search engine. embedder, reranker, and cache may be nil;
// the corresponding stage is then skipped.
func New(
	repo Repository,
	parser Parser,
	embedder Embedder,
	loc LocationResolver,
	reranker Reranker,
	cache ResultCache,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.ApplyDefaults()
	return &Service{
		repo:     repo,
		parser:   parser,
		embedder: embedder,
		loc:      loc,
		reranker: reranker,
		cache:    cache,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Search executes the full pipeline. The only error it returns is a search
// backend failure; every other dependency degrades silently.
func (s *Service) Search(ctx context.Context, req *Request) (*listing.SearchResponse, error) {
	page, limit := s.normalizePaging(req)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.Key(req.RawQuery, req.OverridesJSON, page, limit, req.Strict)
		if resp, ok := s.cache.Get(ctx, cacheKey); ok {
			return resp, nil
		}
	}

	parsed := s.parser.Parse(ctx, req.RawQuery)
	parsed.Merge(req.Overrides)
	parsed.Normalize()

	locs := resolveLocations(parsed, s.loc)

	windowSize := limit * (page + s.cfg.PrefetchPages)
	if limit <= 0 || windowSize > s.cfg.MaxWindow {
		windowSize = s.cfg.MaxWindow
	}

	// Pages past the ranked window page through the index directly; the
	// window is re-anchored at the requested page. The KNN arm has no
	// offset, so deep pages run lexical-only and skip the embedding call.
	windowOffset := 0
	if limit > 0 {
		if pageStart := (page - 1) * limit; pageStart+limit > windowSize {
			windowOffset = pageStart
			windowSize = limit * (1 + s.cfg.PrefetchPages)
			if windowSize > s.cfg.MaxWindow {
				windowSize = s.cfg.MaxWindow
			}
		}
	}

	var vec []float32
	if windowOffset == 0 {
		vec = s.embedQuery(ctx, parsed)
	}

	window, total, usedPhase, err := s.runPhases(ctx, req, parsed, locs, vec, windowSize, windowOffset)
	if err != nil {
		return nil, err
	}
	metrics.SearchPhaseReached.WithLabelValues(usedPhase.String()).Inc()

	scoreWindow(window, parsed, locs, s.cfg.Weights, s.now())

	if s.reranker != nil {
		window = s.reranker.Process(ctx, parsed, window, limit)
	}

	resp := slicePages(window, page, limit, s.cfg.PrefetchPages, total, windowOffset)
	if s.cache != nil {
		s.cache.Put(ctx, cacheKey, resp)
	}
	return resp, nil
}

func (s *Service) normalizePaging(req *Request) (page, limit int) {
	page = req.Page
	if page < 1 {
		page = 1
	}
	if req.Unlimited {
		return page, 0
	}
	limit = req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return page, limit
}

// embedQuery fetches the query vector for hybrid fusion. Any failure means
// this call runs lexical-only.
func (s *Service) embedQuery(ctx context.Context, q *query.StructuredQuery) []float32 {
	if s.embedder == nil || q.Normalized == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, q.Normalized, domain.EmbedQuery)
	if err != nil {
		s.logger.Warn("Query embedding unavailable, degrading to lexical-only",
			zap.String("query", q.Normalized), zap.Error(err))
		return nil
	}
	return vec
}

// runPhases executes the relaxation sequence. Phases that cannot change the
// filter set are skipped; the first phase meeting the floor, or the last
// executed phase, supplies the window.
func (s *Service) runPhases(
	ctx context.Context, req *Request, parsed *query.StructuredQuery,
	locs locationSet, vec []float32, windowSize, offset int,
) ([]listing.Candidate, int, phase, error) {
	var (
		window    []listing.Candidate
		total     int
		usedPhase = phaseExact
	)

	for _, ph := range []phase{phaseExact, phaseSiblings, phaseCategoryBoost, phaseMinimal} {
		switch ph {
		case phaseSiblings:
			if !locs.hasExpansion() {
				continue
			}
		case phaseCategoryBoost:
			if parsed.Category == nil {
				continue
			}
		}

		filters, err := buildFilters(parsed, ph, locs, s.cfg.PriceLoosening)
		if err != nil {
			return nil, 0, ph, fmt.Errorf("%w: %v", domain.ErrSearchBackend, err)
		}

		window, total, err = s.retrieve(ctx, parsed.Normalized, vec, filters, windowSize, offset)
		if err != nil {
			return nil, 0, ph, err
		}
		usedPhase = ph

		if req.Strict || total >= s.cfg.MinResultsFloor {
			break
		}
	}
	return window, total, usedPhase, nil
}

// retrieve runs the lexical arm, and when a vector is available the semantic
// arm concurrently, fusing the two rankings. A semantic-arm failure degrades
// to the lexical result alone; a lexical failure fails the call.
func (s *Service) retrieve(
	ctx context.Context, text string, vec []float32,
	filters filter.Expression, topK, offset int,
) ([]listing.Candidate, int, error) {
	if vec == nil {
		return s.repo.SearchText(ctx, text, true, filters, topK, offset, true)
	}

	var (
		lexical []listing.Candidate
		total   int
		knn     []listing.Candidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, total, err = s.repo.SearchText(gctx, text, true, filters, topK, offset, true)
		return err
	})
	g.Go(func() error {
		res, err := s.repo.SearchKNN(gctx, vec, filters, topK)
		if err != nil {
			s.logger.Warn("Semantic arm failed, fusing skipped", zap.Error(err))
			return nil
		}
		knn = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if len(knn) == 0 {
		metrics.SearchFusionTotal.WithLabelValues("lexical_only").Inc()
		return lexical, total, nil
	}
	metrics.SearchFusionTotal.WithLabelValues("fused").Inc()
	return fuseRRF(lexical, knn, topK), total, nil
}
