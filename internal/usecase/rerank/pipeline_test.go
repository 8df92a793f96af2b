package rerank

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
)

type mockCompleter struct {
	reply string
	err   error
	calls int
}

func (m *mockCompleter) Complete(context.Context, string, string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type mockPopularity struct {
	rooms    map[string]int64
	listings map[string]int64
	err      error
}

func (m *mockPopularity) RoomViews(_ context.Context, ids []string) (map[string]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = m.rooms[id]
	}
	return out, nil
}

func (m *mockPopularity) ListingViews(_ context.Context, ids []string) (map[string]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = m.listings[id]
	}
	return out, nil
}

func makeWindow(n int) []listing.Candidate {
	out := make([]listing.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, listing.Candidate{
			ID:          fmt.Sprintf("doc%02d", i),
			RoomID:      fmt.Sprintf("room%02d", i),
			ListingID:   fmt.Sprintf("lst%02d", i),
			BuildingKey: fmt.Sprintf("b:%02d", i),
			Score:       float64(n - i),
		})
	}
	return out
}

func longQuery() *query.StructuredQuery {
	return &query.StructuredQuery{
		Raw: "tìm phòng nào đó thoáng mát yên tĩnh cho hai người ở ghép được",
	}
}

func newPipeline(c Completer, pop PopularityReader, cfg Config) *Pipeline {
	return New(c, pop, cfg, zap.NewNop())
}

func TestProcess_ShortStructuredQuerySkipsRerank(t *testing.T) {
	completer := &mockCompleter{reply: `{"0": 1.0}`}
	cat := query.CategoryPhongTro
	q := &query.StructuredQuery{Raw: "phòng trọ q1", Category: &cat}

	p := newPipeline(completer, nil, Config{})
	out := p.Process(context.Background(), q, makeWindow(30), 10)

	if completer.calls != 0 {
		t.Fatalf("completer calls = %d, short structured query must skip rerank", completer.calls)
	}
	if len(out) != 30 {
		t.Fatalf("window = %d items", len(out))
	}
}

func TestProcess_SmallWindowSkipsRerank(t *testing.T) {
	completer := &mockCompleter{reply: `{"0": 1.0}`}
	p := newPipeline(completer, nil, Config{})

	p.Process(context.Background(), longQuery(), makeWindow(10), 10)

	if completer.calls != 0 {
		t.Fatalf("completer calls = %d, small window must skip rerank", completer.calls)
	}
}

func TestProcess_AppliedRerankReordersScoredPrefix(t *testing.T) {
	// Reverse the first three of a 15-item window.
	completer := &mockCompleter{reply: `{"0": 0.1, "1": 0.5, "2": 0.9}`}
	p := newPipeline(completer, nil, Config{MaxCandidates: 3})

	out := p.Process(context.Background(), longQuery(), makeWindow(15), 10)

	if completer.calls != 1 {
		t.Fatalf("completer calls = %d", completer.calls)
	}
	if out[0].ID != "doc02" || out[1].ID != "doc01" || out[2].ID != "doc00" {
		t.Fatalf("prefix order = %s %s %s", out[0].ID, out[1].ID, out[2].ID)
	}
	if out[3].ID != "doc03" {
		t.Fatalf("unsent tail moved, got %s at index 3", out[3].ID)
	}
	if out[0].AIScore == nil || *out[0].AIScore != 0.9 {
		t.Fatalf("AIScore = %v", out[0].AIScore)
	}
}

func TestProcess_MalformedReplyKeepsOriginalOrder(t *testing.T) {
	for _, reply := range []string{
		"no json here",
		`{"0": 1.5}`,
		`{"99": 0.5}`,
		`{}`,
	} {
		completer := &mockCompleter{reply: reply}
		p := newPipeline(completer, nil, Config{})

		out := p.Process(context.Background(), longQuery(), makeWindow(15), 10)

		if out[0].ID != "doc00" {
			t.Fatalf("reply %q reordered the window", reply)
		}
	}
}

func TestProcess_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	completer := &mockCompleter{err: errors.New("scorer down")}
	p := newPipeline(completer, nil, Config{
		BreakerFailures: 3,
		BreakerCooldown: time.Hour,
	})

	window := makeWindow(15)
	for i := 0; i < 5; i++ {
		out := p.Process(context.Background(), longQuery(), window, 10)
		if out[0].ID != "doc00" {
			t.Fatalf("call %d reordered the window on failure", i)
		}
	}

	if completer.calls != 3 {
		t.Fatalf("completer calls = %d, breaker must stop calls after 3 failures", completer.calls)
	}
}

func TestProcess_PopularityBoostIsStable(t *testing.T) {
	pop := &mockPopularity{
		rooms: map[string]int64{"room04": 50},
	}
	p := newPipeline(nil, pop, Config{})

	out := p.Process(context.Background(), &query.StructuredQuery{}, makeWindow(6), 10)

	if out[0].ID != "doc04" {
		t.Fatalf("most-viewed item = %s, want doc04 first", out[0].ID)
	}
	// Zero-view items keep their retrieval order.
	want := []string{"doc04", "doc00", "doc01", "doc02", "doc03", "doc05"}
	for i, id := range want {
		if out[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, out[i].ID, id)
		}
	}
}

func TestProcess_PopularityErrorSkipsBoost(t *testing.T) {
	pop := &mockPopularity{err: errors.New("counters down")}
	p := newPipeline(nil, pop, Config{})

	out := p.Process(context.Background(), &query.StructuredQuery{}, makeWindow(4), 10)

	for i, c := range out {
		if c.ID != fmt.Sprintf("doc%02d", i) {
			t.Fatalf("order changed despite counter failure: %s at %d", c.ID, i)
		}
	}
}

func TestProcess_DiversityCaps(t *testing.T) {
	window := []listing.Candidate{
		{ID: "a1", RoomID: "r1", BuildingKey: "b:x"},
		{ID: "a2", RoomID: "r1", BuildingKey: "b:x"},
		{ID: "a3", RoomID: "r1", BuildingKey: "b:x"}, // over per-room cap
		{ID: "b1", RoomID: "r2", BuildingKey: "b:x"},
		{ID: "b2", RoomID: "r3", BuildingKey: "b:x"}, // over per-building cap
		{ID: "c1", RoomID: "r4", BuildingKey: "b:y"},
	}
	p := newPipeline(nil, nil, Config{PerRoomCap: 2, PerBuildingCap: 3})

	out := p.Process(context.Background(), &query.StructuredQuery{}, window, 10)

	got := make([]string, 0, len(out))
	for _, c := range out {
		got = append(got, c.ID)
	}
	want := []string{"a1", "a2", "b1", "c1"}
	if len(got) != len(want) {
		t.Fatalf("diversified = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("diversified = %v, want %v", got, want)
		}
	}

	rooms := map[string]int{}
	buildings := map[string]int{}
	for _, c := range out {
		rooms[c.RoomID]++
		buildings[c.BuildingKey]++
		if rooms[c.RoomID] > 2 || buildings[c.BuildingKey] > 3 {
			t.Fatalf("cap violated at %s", c.ID)
		}
	}
}
