package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
)

type mockRepo struct {
	mu sync.Mutex

	textResults [][]listing.Candidate // one slice per call, last one repeats
	textTotals  []int
	textErr     error

	knnResults []listing.Candidate
	knnErr     error

	texts    []string
	topKs    []int
	filters  []filter.Expression
	offsets  []int
	knnCalls int
}

func (m *mockRepo) SearchText(
	_ context.Context, text string, _ bool,
	filters filter.Expression, topK, offset int, _ bool,
) ([]listing.Candidate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textErr != nil {
		return nil, 0, m.textErr
	}
	idx := len(m.texts)
	m.texts = append(m.texts, text)
	m.topKs = append(m.topKs, topK)
	m.filters = append(m.filters, filters)
	m.offsets = append(m.offsets, offset)

	if idx >= len(m.textResults) {
		idx = len(m.textResults) - 1
	}
	if idx < 0 {
		return nil, 0, nil
	}
	return m.textResults[idx], m.textTotals[idx], nil
}

func (m *mockRepo) SearchKNN(
	_ context.Context, _ []float32, _ filter.Expression, _ int,
) ([]listing.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knnCalls++
	if m.knnErr != nil {
		return nil, m.knnErr
	}
	return m.knnResults, nil
}

func (m *mockRepo) textCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

type mockParser struct {
	q *query.StructuredQuery
}

func (m *mockParser) Parse(context.Context, string) *query.StructuredQuery {
	cp := *m.q
	return &cp
}

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(context.Context, string, domain.EmbedKind) ([]float32, error) {
	m.calls++
	return m.vec, m.err
}

type mockReranker struct {
	calls    int
	lastQ    *query.StructuredQuery
	lastSize int
}

func (m *mockReranker) Process(
	_ context.Context, q *query.StructuredQuery,
	window []listing.Candidate, pageSize int,
) []listing.Candidate {
	m.calls++
	m.lastQ = q
	m.lastSize = pageSize
	return window
}

type mockResultCache struct {
	entries map[string]*listing.SearchResponse
	puts    int
}

func (m *mockResultCache) Key(raw string, overrides []byte, page, limit int, strict bool) string {
	return fmt.Sprintf("%s|%s|%d|%d|%t", raw, overrides, page, limit, strict)
}

func (m *mockResultCache) Get(_ context.Context, key string) (*listing.SearchResponse, bool) {
	resp, ok := m.entries[key]
	return resp, ok
}

func (m *mockResultCache) Put(_ context.Context, key string, resp *listing.SearchResponse) {
	m.puts++
	m.entries[key] = resp
}

func makeCands(n int) []listing.Candidate {
	out := make([]listing.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, listing.Candidate{
			ID:       fmt.Sprintf("doc%02d", i),
			Category: "phong-tro",
			WardCode: "w1",
			Score:    float64(n - i),
		})
	}
	return out
}

func district7Query() *query.StructuredQuery {
	return &query.StructuredQuery{
		Raw:        "phòng trọ quận 7 dưới 5 triệu",
		Normalized: "phong tro quan 7 duoi 5 trieu",
		Category:   catPtr(query.CategoryPhongTro),
		Price:      &query.MoneyRange{Max: int64Ptr(5_000_000)},
		Districts:  []string{"quan 7"},
	}
}

func district7Resolver() *mockLocations {
	return &mockLocations{
		districts: map[string][]string{"quan 7": {"w1", "w2"}},
	}
}

func newEngine(repo *mockRepo, parser Parser, emb Embedder, loc LocationResolver, rr Reranker, cache ResultCache) *Service {
	return New(repo, parser, emb, loc, rr, cache, Config{}, zap.NewNop())
}

func TestSearch_ExactPhaseMeetsFloor(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(12)},
		textTotals:  []int{12},
	}
	rr := &mockReranker{}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), rr, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "phòng trọ quận 7 dưới 5 triệu", Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if repo.textCalls() != 1 {
		t.Fatalf("text calls = %d, a full exact phase must not relax", repo.textCalls())
	}
	if resp.Total != 12 || len(resp.Items) != 5 {
		t.Fatalf("resp total=%d items=%d", resp.Total, len(resp.Items))
	}
	if rr.calls != 1 || rr.lastSize != 5 {
		t.Fatalf("reranker calls=%d pageSize=%d", rr.calls, rr.lastSize)
	}
	if repo.texts[0] != "phong tro quan 7 duoi 5 trieu" {
		t.Fatalf("lexical arm text = %q", repo.texts[0])
	}
}

func TestSearch_RelaxesUntilFloorMet(t *testing.T) {
	// Ward mention with siblings so the sibling phase applies.
	loc := &mockLocations{
		wards:    map[string]string{"tan phong": "w1"},
		siblings: map[string][]string{"w1": {"w1", "w2", "w3"}},
	}
	q := district7Query()
	q.Districts = []string{"tan phong"}

	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(2), makeCands(11)},
		textTotals:  []int{2, 11},
	}
	svc := newEngine(repo, &mockParser{q: q}, nil, loc, &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: q.Raw, Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if repo.textCalls() != 2 {
		t.Fatalf("text calls = %d, want exact then sibling phase", repo.textCalls())
	}
	wards := findMust(t, repo.filters[1], listing.FieldWardCode)
	if len(wards.Values()) != 3 {
		t.Fatalf("second phase ward codes = %v, want the sibling expansion", wards.Values())
	}
	if resp.Total != 11 {
		t.Fatalf("total = %d, want the satisfying phase's total", resp.Total)
	}
}

func TestSearch_SkipsInapplicablePhases(t *testing.T) {
	// District mention (no sibling expansion) and no category: only the
	// exact and minimal phases can change the result.
	q := district7Query()
	q.Category = nil

	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(1), makeCands(3)},
		textTotals:  []int{1, 3},
	}
	svc := newEngine(repo, &mockParser{q: q}, nil, district7Resolver(), &mockReranker{}, nil)

	if _, err := svc.Search(context.Background(), &Request{RawQuery: q.Raw, Limit: 5}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if repo.textCalls() != 2 {
		t.Fatalf("text calls = %d, want exact then minimal", repo.textCalls())
	}
	if hasMust(repo.filters[1], listing.FieldWardCode) {
		t.Fatal("minimal phase must drop the location filter")
	}
}

func TestSearch_StrictStopsAfterExactPhase(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(1)},
		textTotals:  []int{1},
	}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Limit: 5, Strict: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.textCalls() != 1 {
		t.Fatalf("text calls = %d, strict mode must not relax", repo.textCalls())
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d", resp.Total)
	}
}

func TestSearch_EmbedFailureDegradesToLexical(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(12)},
		textTotals:  []int{12},
	}
	emb := &mockEmbedder{err: domain.ErrEmbeddingUnavailable}
	svc := newEngine(repo, &mockParser{q: district7Query()}, emb, district7Resolver(), &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.knnCalls != 0 {
		t.Fatalf("knn calls = %d, want none without a vector", repo.knnCalls)
	}
	if len(resp.Items) != 5 {
		t.Fatalf("items = %d", len(resp.Items))
	}
}

func TestSearch_HybridFusionIncludesVectorOnlyHits(t *testing.T) {
	lexical := makeCands(12)
	repo := &mockRepo{
		textResults: [][]listing.Candidate{lexical},
		textTotals:  []int{12},
		knnResults: []listing.Candidate{
			{ID: "semantic-only", Category: "phong-tro", WardCode: "w1", TextScore: 5},
		},
	}
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := newEngine(repo, &mockParser{q: district7Query()}, emb, district7Resolver(), &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Limit: 20})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.knnCalls != 1 {
		t.Fatalf("knn calls = %d", repo.knnCalls)
	}
	found := false
	for _, item := range resp.Items {
		if item.ID == "semantic-only" {
			found = true
		}
	}
	if !found {
		t.Fatal("vector-only hit missing from fused results")
	}
}

func TestSearch_SemanticArmFailureDegrades(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(12)},
		textTotals:  []int{12},
		knnErr:      errors.New("vector index offline"),
	}
	emb := &mockEmbedder{vec: []float32{0.1}}
	svc := newEngine(repo, &mockParser{q: district7Query()}, emb, district7Resolver(), &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 5 {
		t.Fatalf("items = %d, lexical arm must still serve", len(resp.Items))
	}
}

func TestSearch_BackendErrorSurfaces(t *testing.T) {
	repo := &mockRepo{
		textErr: fmt.Errorf("text search: %w: index gone", domain.ErrSearchBackend),
	}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, nil)

	_, err := svc.Search(context.Background(), &Request{RawQuery: "q", Limit: 5})
	if !errors.Is(err, domain.ErrSearchBackend) {
		t.Fatalf("err = %v, want the backend error surfaced", err)
	}
}

func TestSearch_ResultCacheShortCircuits(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(12)},
		textTotals:  []int{12},
	}
	cache := &mockResultCache{entries: map[string]*listing.SearchResponse{}}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, cache)

	req := &Request{RawQuery: "phòng trọ quận 7", Limit: 5}
	first, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("first Search: %v", err)
	}
	if cache.puts != 1 {
		t.Fatalf("cache puts = %d", cache.puts)
	}

	second, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if repo.textCalls() != 1 {
		t.Fatalf("text calls = %d, cached request must not hit the index", repo.textCalls())
	}
	if second != first {
		t.Fatal("cache hit must return the stored response")
	}
}

func TestSearch_StrictRequestNotServedRelaxedCache(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(2), makeCands(30), makeCands(2)},
		textTotals:  []int{2, 30, 2},
	}
	cache := &mockResultCache{entries: map[string]*listing.SearchResponse{}}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, cache)

	relaxed, err := svc.Search(context.Background(), &Request{RawQuery: "phòng trọ quận 7", Limit: 5})
	if err != nil {
		t.Fatalf("relaxed Search: %v", err)
	}
	if relaxed.Total != 30 {
		t.Fatalf("relaxed total = %d, want 30", relaxed.Total)
	}

	strict, err := svc.Search(context.Background(), &Request{RawQuery: "phòng trọ quận 7", Limit: 5, Strict: true})
	if err != nil {
		t.Fatalf("strict Search: %v", err)
	}
	if strict.Total != 2 {
		t.Fatalf("strict total = %d, want 2 (must not reuse the relaxed window)", strict.Total)
	}
	if cache.puts != 2 {
		t.Fatalf("cache puts = %d, strict and relaxed must cache under distinct keys", cache.puts)
	}
}

func TestSearch_OverridesWinOverParsedValues(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(12)},
		textTotals:  []int{12},
	}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, nil)

	req := &Request{
		RawQuery:  "phòng trọ quận 7 dưới 5 triệu",
		Overrides: &query.StructuredQuery{Price: &query.MoneyRange{Max: int64Ptr(3_000_000)}},
		Limit:     5,
	}
	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("Search: %v", err)
	}

	price := findMust(t, repo.filters[0], listing.FieldPrice)
	if got := *price.Range().LTE(); got != 3_000_000 {
		t.Fatalf("price bound = %v, override must win over the parsed value", got)
	}
}

func TestSearch_WindowCoversPrefetch(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(20)},
		textTotals:  []int{20},
	}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Page: 1, Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// limit * (page + prefetch pages)
	if repo.topKs[0] != 5*(1+3) {
		t.Fatalf("window size = %d, want %d", repo.topKs[0], 5*(1+3))
	}
	if len(resp.Prefetch) != 3 {
		t.Fatalf("prefetch = %d pages", len(resp.Prefetch))
	}
}

func TestSearch_DeepPageShiftsWindowOffset(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(150)},
		textTotals:  []int{650},
	}
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := newEngine(repo, &mockParser{q: district7Query()}, emb, district7Resolver(), &mockReranker{}, nil)

	// Page 6 at limit 100 starts at result 500, past the 500-item window cap.
	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Page: 6, Limit: 100})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if repo.offsets[0] != 500 {
		t.Fatalf("offset = %d, want 500", repo.offsets[0])
	}
	if repo.topKs[0] != 400 {
		t.Fatalf("window size = %d, want limit*(1+prefetch) = 400", repo.topKs[0])
	}
	if repo.knnCalls != 0 {
		t.Fatalf("knn calls = %d, deep pages must run lexical-only", repo.knnCalls)
	}
	if emb.calls != 0 {
		t.Fatalf("embed calls = %d, deep pages must skip embedding", emb.calls)
	}
	if resp.Page != 6 || len(resp.Items) != 100 {
		t.Fatalf("page = %d with %d items, want page 6 full", resp.Page, len(resp.Items))
	}
	if resp.Total != 650 {
		t.Fatalf("total = %d", resp.Total)
	}
	if len(resp.Prefetch) != 1 || resp.Prefetch[0].Page != 7 || len(resp.Prefetch[0].Items) != 50 {
		t.Fatalf("prefetch = %+v, want one partial page 7", resp.Prefetch)
	}
}

func TestSearch_UnlimitedReturnsSinglePage(t *testing.T) {
	repo := &mockRepo{
		textResults: [][]listing.Candidate{makeCands(30)},
		textTotals:  []int{30},
	}
	svc := newEngine(repo, &mockParser{q: district7Query()}, nil, district7Resolver(), &mockReranker{}, nil)

	resp, err := svc.Search(context.Background(), &Request{RawQuery: "q", Unlimited: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 30 || len(resp.Prefetch) != 0 {
		t.Fatalf("unlimited: items=%d prefetch=%d", len(resp.Items), len(resp.Prefetch))
	}
	if resp.Page != 1 {
		t.Fatalf("page = %d", resp.Page)
	}
}
