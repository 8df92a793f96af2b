// Package parse turns free-form Vietnamese rental queries into structured
// filters. A deterministic heuristic rule battery always runs; an AI-assisted
// pass is layered on top only when a complexity gate decides the text is too
// ambiguous for rules alone, and only within a strict time budget.
package parse

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/metrics"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

// Config carries the hand-tuned gate thresholds and AI budget. They are
// configuration, not logic: retuning them must not require a code change.
type Config struct {
	// TokenCeiling is the token count above which the heuristics alone are
	// assumed to miss intent.
	TokenCeiling int
	// MinSignals is how many structured signals (category, price, district,
	// POI, area, rooms) the heuristics must extract for AI to be skipped.
	MinSignals int
	// AITimeout bounds the assisted parse; the heuristic result is returned
	// unchanged when it expires.
	AITimeout time.Duration
	// CacheSize is the parsed-query LRU capacity.
	CacheSize int
	// DefaultRadiusMeters is the geo radius applied when a POI geocodes
	// successfully but the user gave no explicit radius.
	DefaultRadiusMeters float64
}

// ApplyDefaults fills unset fields with the tuned defaults.
func (c *Config) ApplyDefaults() {
	if c.TokenCeiling <= 0 {
		c.TokenCeiling = 12
	}
	if c.MinSignals <= 0 {
		c.MinSignals = 2
	}
	if c.AITimeout <= 0 {
		c.AITimeout = 1200 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 2048
	}
	if c.DefaultRadiusMeters <= 0 {
		c.DefaultRadiusMeters = 3000
	}
}

// Service is the query parser.
type Service struct {
	heur      heuristics
	completer Completer
	geocoder  Geocoder
	cfg       Config
	cache     *lru.Cache[string, *query.StructuredQuery]
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a parser service. completer and geocoder may be nil; the
// corresponding enrichment is then skipped.
func New(
	lex AmenityExtractor,
	loc DistrictMatcher,
	completer Completer,
	geocoder Geocoder,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	cfg.ApplyDefaults()
	cache, err := lru.New[string, *query.StructuredQuery](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		heur:      heuristics{lex: lex, loc: loc},
		completer: completer,
		geocoder:  geocoder,
		cfg:       cfg,
		cache:     cache,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Parse converts raw text into a structured query. It never fails: any
// internal error degrades to the heuristic best-effort result.
func (s *Service) Parse(ctx context.Context, raw string) *query.StructuredQuery {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &query.StructuredQuery{}
	}

	cacheKey := vntext.NormalizeFold(raw)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return copyQuery(cached)
	}

	q := s.heur.parse(raw, s.now())

	if s.completer != nil && s.needsAI(cacheKey, q) {
		s.applyAI(ctx, raw, q)
	} else {
		metrics.ParseAITotal.WithLabelValues("skipped").Inc()
	}

	s.resolvePOI(ctx, q)

	q.Normalize()
	s.cache.Add(cacheKey, copyQuery(q))
	return q
}

// needsAI is the complexity gate. Text that already yielded enough
// structured signal, with no dangling proximity language, skips the AI call.
func (s *Service) needsAI(folded string, q *query.StructuredQuery) bool {
	if vntext.TokenCount(folded) > s.cfg.TokenCeiling {
		return true
	}

	// A proximity word without an extracted POI means the rules did not
	// understand what the user is near.
	if len(q.POIKeywords) == 0 {
		for _, marker := range proximityMarkers {
			if containsToken(folded, marker) {
				return true
			}
		}
	}

	signals := 0
	if q.Category != nil {
		signals++
	}
	if q.Price != nil {
		signals++
	}
	if len(q.Districts) > 0 {
		signals++
	}
	if len(q.POIKeywords) > 0 {
		signals++
	}
	if q.Area != nil {
		signals++
	}
	if q.Bedrooms != nil || q.Bathrooms != nil {
		signals++
	}
	return signals < s.cfg.MinSignals
}

// applyAI races the assisted parse against the time budget and overlays a
// validated result on top of the heuristic one. The in-flight call may
// outlive the deadline; its result is then discarded.
func (s *Service) applyAI(ctx context.Context, raw string, q *query.StructuredQuery) {
	aiCtx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
	defer cancel()

	type aiResult struct {
		q   *query.StructuredQuery
		err error
	}
	ch := make(chan aiResult, 1)

	go func() {
		text, err := s.completer.Complete(aiCtx, systemPrompt, raw)
		if err != nil {
			ch <- aiResult{err: err}
			return
		}
		parsed, err := parseAIResponse(text)
		ch <- aiResult{q: parsed, err: err}
	}()

	select {
	case res := <-ch:
		switch {
		case res.err != nil:
			metrics.ParseAITotal.WithLabelValues("invalid").Inc()
			s.logger.Debug("AI parse discarded", zap.String("query", raw), zap.Error(res.err))
		default:
			q.Merge(res.q)
			metrics.ParseAITotal.WithLabelValues("applied").Inc()
		}
	case <-aiCtx.Done():
		metrics.ParseAITotal.WithLabelValues("timeout").Inc()
		s.logger.Debug("AI parse timed out", zap.String("query", raw))
	}
}

// resolvePOI geocodes the first POI phrase. The phrase stays in the keyword
// list for text boosting whether or not coordinates were found.
func (s *Service) resolvePOI(ctx context.Context, q *query.StructuredQuery) {
	if s.geocoder == nil || len(q.POIKeywords) == 0 || q.Latitude != nil {
		return
	}
	pt, ok := s.geocoder.Geocode(ctx, q.POIKeywords[0], "")
	if !ok {
		return
	}
	q.Latitude = &pt.Latitude
	q.Longitude = &pt.Longitude
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = s.cfg.DefaultRadiusMeters
	}
}

// copyQuery returns a shallow copy with its own slices. Pointer fields are
// shared; downstream stages replace them rather than mutating in place.
func copyQuery(q *query.StructuredQuery) *query.StructuredQuery {
	c := *q
	c.Amenities = append([]string(nil), q.Amenities...)
	c.ExcludeAmenities = append([]string(nil), q.ExcludeAmenities...)
	c.Districts = append([]string(nil), q.Districts...)
	c.ExcludeDistricts = append([]string(nil), q.ExcludeDistricts...)
	c.POIKeywords = append([]string(nil), q.POIKeywords...)
	return &c
}
