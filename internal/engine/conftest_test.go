package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// --- Mocks ---

// mockStore is a function-field store double. Calls are recorded under a
// lock because the engine issues aggregation and completion requests
// concurrently.
type mockStore struct {
	mu         sync.Mutex
	searchFn   func(ctx context.Context, body map[string]any) (*store.Response, error)
	mappingFn  func(ctx context.Context) (json.RawMessage, error)
	searchLog  []map[string]any
	mappingLog int
}

func (m *mockStore) Search(ctx context.Context, body map[string]any) (*store.Response, error) {
	m.mu.Lock()
	m.searchLog = append(m.searchLog, body)
	fn := m.searchFn
	m.mu.Unlock()
	if fn == nil {
		return &store.Response{}, nil
	}
	return fn(ctx, body)
}

func (m *mockStore) Mapping(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	m.mappingLog++
	fn := m.mappingFn
	m.mu.Unlock()
	if fn == nil {
		return json.RawMessage(`{}`), nil
	}
	return fn(ctx)
}

func (m *mockStore) searches() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.searchLog))
	copy(out, m.searchLog)
	return out
}

// newTestEngine builds an engine wired to the given mock via its factory.
// The index switch validates against the mock's mapping.
func newTestEngine(t *testing.T, m *mockStore) *Engine {
	t.Helper()
	e := New(func(string) (store.Store, error) { return m, nil })
	if err := e.SetIndex(context.Background(), "test-index"); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	return e
}

func hitsResponse(total int, ids ...string) *store.Response {
	resp := &store.Response{}
	resp.Hits.Total.Value = total
	for _, id := range ids {
		resp.Hits.Hits = append(resp.Hits.Hits, store.Document{ID: id})
	}
	return resp
}

func aggResponse(t *testing.T, aggs map[string]any) *store.Response {
	t.Helper()
	out := make(map[string]json.RawMessage, len(aggs))
	for name, agg := range aggs {
		data, err := json.Marshal(agg)
		if err != nil {
			t.Fatalf("marshal aggregation %s: %v", name, err)
		}
		out[name] = data
	}
	return &store.Response{Aggregations: out}
}

func termsAgg(keys ...string) map[string]any {
	buckets := make([]map[string]any, 0, len(keys))
	for i, key := range keys {
		buckets = append(buckets, map[string]any{"key": key, "doc_count": i + 1})
	}
	return map[string]any{"buckets": buckets}
}
