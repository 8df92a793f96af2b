// Package rerank is the post-retrieval pipeline: an optional AI rerank guarded
// by a circuit breaker, a popularity boost from the interaction counters, and
// a per-room/per-building diversity cap. Every stage degrades to the incoming
// order on failure; the pipeline never fails a search.
package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/metrics"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

const systemPrompt = `Bạn là bộ xếp hạng kết quả tìm phòng trọ. Người dùng gửi một câu tìm kiếm và danh sách kết quả đánh số thứ tự.
Chấm điểm mức độ phù hợp của từng kết quả với câu tìm kiếm, thang 0 đến 1.
Chỉ trả về một object JSON duy nhất dạng {"0": 0.9, "1": 0.4, ...}, không giải thích.`

// Config holds the pipeline knobs.
type Config struct {
	// WindowFloor is the window size at or below which reranking is skipped.
	WindowFloor int
	// SimpleTokenMax marks a query as simple-and-structured: at most this
	// many tokens plus an explicit price, category, or geo signal.
	SimpleTokenMax int
	// MaxCandidates caps how many items are sent to the scorer.
	MaxCandidates int
	Timeout       time.Duration

	// BreakerFailures consecutive failures within BreakerInterval open the
	// breaker for BreakerCooldown.
	BreakerFailures int
	BreakerInterval time.Duration
	BreakerCooldown time.Duration

	PerRoomCap     int
	PerBuildingCap int

	// PopularityWeight scales the log-damped view-count boost.
	PopularityWeight float64
}

// ApplyDefaults fills unset fields with the tuned defaults.
func (c *Config) ApplyDefaults() {
	if c.WindowFloor <= 0 {
		c.WindowFloor = 12
	}
	if c.SimpleTokenMax <= 0 {
		c.SimpleTokenMax = 6
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 30
	}
	if c.Timeout <= 0 {
		c.Timeout = 2500 * time.Millisecond
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = time.Minute
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 2 * time.Minute
	}
	if c.PerRoomCap <= 0 {
		c.PerRoomCap = 2
	}
	if c.PerBuildingCap <= 0 {
		c.PerBuildingCap = 3
	}
	if c.PopularityWeight <= 0 {
		c.PopularityWeight = 0.3
	}
}

// Pipeline runs the post-retrieval stages in order.
type Pipeline struct {
	completer Completer
	pop       PopularityReader
	breaker   *gobreaker.CircuitBreaker[map[int]float64]
	cfg       Config
	logger    *zap.Logger
}

// New creates the pipeline. completer and pop may be nil; the corresponding
// stage is then skipped.
func New(completer Completer, pop PopularityReader, cfg Config, logger *zap.Logger) *Pipeline {
	cfg.ApplyDefaults()

	p := &Pipeline{
		completer: completer,
		pop:       pop,
		cfg:       cfg,
		logger:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker[map[int]float64](gobreaker.Settings{
		Name:     "ai-rerank",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.RerankBreakerState.Set(1)
			} else {
				metrics.RerankBreakerState.Set(0)
			}
			logger.Info("Rerank breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return p
}

// Process runs rerank, popularity boost, and diversification over the window.
// The incoming order is always a valid output; no stage failure propagates.
func (p *Pipeline) Process(ctx context.Context, q *query.StructuredQuery, window []listing.Candidate, pageSize int) []listing.Candidate {
	out := window

	if p.eligible(q, out) {
		out = p.rerankAI(ctx, q, out)
	} else {
		metrics.RerankTotal.WithLabelValues("skipped").Inc()
	}

	out = p.popularityBoost(ctx, out)
	return p.diversify(out)
}

// eligible gates the AI rerank. A short query with an explicit structured
// signal gains nothing from semantic reordering, and a small window is
// already cheap to scan.
func (p *Pipeline) eligible(q *query.StructuredQuery, window []listing.Candidate) bool {
	if p.completer == nil || len(window) <= p.cfg.WindowFloor {
		return false
	}
	if strings.TrimSpace(q.Raw) == "" {
		return false
	}
	tokens := strings.Fields(vntext.NormalizeFold(q.Raw))
	if len(tokens) <= p.cfg.SimpleTokenMax &&
		(q.Price != nil || q.Category != nil || q.HasGeo()) {
		return false
	}
	return true
}

// rerankAI scores a capped candidate prefix through the breaker-guarded AI
// call and stably reorders that prefix by score. The unsent tail keeps its
// position after the scored prefix.
func (p *Pipeline) rerankAI(ctx context.Context, q *query.StructuredQuery, window []listing.Candidate) []listing.Candidate {
	n := len(window)
	if n > p.cfg.MaxCandidates {
		n = p.cfg.MaxCandidates
	}

	scores, err := p.breaker.Execute(func() (map[int]float64, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		return p.scoreCandidates(callCtx, q, window[:n])
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RerankTotal.WithLabelValues("breaker_open").Inc()
		} else {
			metrics.RerankTotal.WithLabelValues("failed").Inc()
			p.logger.Warn("Failed to rerank, keeping retrieval order", zap.Error(err))
		}
		return window
	}
	metrics.RerankTotal.WithLabelValues("applied").Inc()

	out := make([]listing.Candidate, len(window))
	copy(out, window)
	for i := 0; i < n; i++ {
		if s, ok := scores[i]; ok {
			v := s
			out[i].AIScore = &v
		}
	}

	prefix := out[:n]
	sort.SliceStable(prefix, func(i, j int) bool {
		return aiScore(&prefix[i]) > aiScore(&prefix[j])
	})
	return out
}

func aiScore(c *listing.Candidate) float64 {
	if c.AIScore == nil {
		return 0
	}
	return *c.AIScore
}

// scoreCandidates sends the condensed window to the scorer and parses the
// index-to-score object out of the reply.
func (p *Pipeline) scoreCandidates(ctx context.Context, q *query.StructuredQuery, cands []listing.Candidate) (map[int]float64, error) {
	type condensed struct {
		Index    int     `json:"index"`
		Title    string  `json:"title"`
		Category string  `json:"category"`
		Price    float64 `json:"price"`
		Area     float64 `json:"area"`
		District string  `json:"district"`
	}

	items := make([]condensed, 0, len(cands))
	for i := range cands {
		c := &cands[i]
		items = append(items, condensed{
			Index:    i,
			Title:    c.Fields[listing.FieldTitle],
			Category: c.Category,
			Price:    c.Price,
			Area:     c.Area,
			District: c.Fields[listing.FieldDistrict],
		})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode rerank payload: %w", err)
	}

	user := fmt.Sprintf("Câu tìm kiếm: %s\nKết quả:\n%s", q.Raw, payload)
	reply, err := p.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, err
	}
	return parseScores(reply, len(cands))
}

// parseScores extracts the {"index": score} object from a free-form reply.
// Out-of-range indexes and scores outside [0,1] make the reply invalid; a
// lenient parse here would silently apply garbage ordering.
func parseScores(reply string, n int) (map[int]float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in rerank reply")
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode rerank reply: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty rerank reply")
	}

	scores := make(map[int]float64, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= n {
			return nil, fmt.Errorf("invalid rerank index %q", k)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("rerank score %v out of range for index %d", v, idx)
		}
		scores[idx] = v
	}
	return scores, nil
}

// popularityBoost reorders by log-damped recent view counts. The sort is
// stable: zero-view items keep their relative retrieval order.
func (p *Pipeline) popularityBoost(ctx context.Context, window []listing.Candidate) []listing.Candidate {
	if p.pop == nil || len(window) == 0 {
		return window
	}

	roomIDs := make([]string, 0, len(window))
	listingIDs := make([]string, 0, len(window))
	for i := range window {
		if window[i].RoomID != "" {
			roomIDs = append(roomIDs, window[i].RoomID)
		}
		if window[i].ListingID != "" {
			listingIDs = append(listingIDs, window[i].ListingID)
		}
	}
	if len(roomIDs) == 0 && len(listingIDs) == 0 {
		return window
	}

	roomViews, err := p.pop.RoomViews(ctx, roomIDs)
	if err != nil {
		p.logger.Warn("Failed to read room popularity, skipping boost", zap.Error(err))
		return window
	}
	listingViews, err := p.pop.ListingViews(ctx, listingIDs)
	if err != nil {
		p.logger.Warn("Failed to read listing popularity, skipping boost", zap.Error(err))
		return window
	}

	out := make([]listing.Candidate, len(window))
	copy(out, window)

	boosts := make([]float64, len(out))
	for i := range out {
		views := roomViews[out[i].RoomID] + listingViews[out[i].ListingID]
		if views > 0 {
			boosts[i] = p.cfg.PopularityWeight * math.Log1p(float64(views))
		}
	}

	type ranked struct {
		cand  listing.Candidate
		boost float64
	}
	rs := make([]ranked, len(out))
	for i := range out {
		rs[i] = ranked{cand: out[i], boost: boosts[i]}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].boost > rs[j].boost })
	for i := range rs {
		rs[i].cand.Score += rs[i].boost
		out[i] = rs[i].cand
	}
	return out
}

// diversify walks the window once, dropping items past the per-room and
// per-building caps. Greedy by position: earlier (better-ranked) items claim
// the slots.
func (p *Pipeline) diversify(window []listing.Candidate) []listing.Candidate {
	if len(window) == 0 {
		return window
	}

	roomCount := make(map[string]int)
	buildingCount := make(map[string]int)
	out := make([]listing.Candidate, 0, len(window))

	for i := range window {
		c := window[i]
		if c.RoomID != "" && roomCount[c.RoomID] >= p.cfg.PerRoomCap {
			continue
		}
		if c.BuildingKey != "" && buildingCount[c.BuildingKey] >= p.cfg.PerBuildingCap {
			continue
		}
		if c.RoomID != "" {
			roomCount[c.RoomID]++
		}
		if c.BuildingKey != "" {
			buildingCount[c.BuildingKey]++
		}
		out = append(out, c)
	}
	return out
}
