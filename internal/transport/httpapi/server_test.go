package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jpl-safedocs/file-observatory/internal/download"
	"github.com/jpl-safedocs/file-observatory/internal/engine"
	"github.com/jpl-safedocs/file-observatory/internal/logger"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// --- Mocks ---

type stubStore struct{}

func (stubStore) Search(context.Context, map[string]any) (*store.Response, error) {
	return &store.Response{}, nil
}

func (stubStore) Mapping(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"idx": {"mappings": {"properties": {"mime": {"type": "keyword"}}}}}`), nil
}

// failingStore validates like stubStore but fails every search.
type failingStore struct{ stubStore }

func (failingStore) Search(context.Context, map[string]any) (*store.Response, error) {
	return nil, errors.New("connection reset")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := engine.New(func(string) (store.Store, error) { return stubStore{}, nil })
	if err := eng.SetIndex(context.Background(), "idx"); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}

	resolver := &download.Resolver{Mode: download.ModeAPI, APIURL: "https://dl.example.com/get"}
	srv := NewServer(eng, resolver, nil)

	r := chi.NewRouter()
	srv.Routes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// --- Tests ---

func TestGetState(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/state")
	if err != nil {
		t.Fatalf("GET state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st engine.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Index != "idx" || !st.ValidIndex {
		t.Errorf("state = index %q valid %v", st.Index, st.ValidIndex)
	}
}

func TestSearch_ReturnsUpdatedState(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/search", `{"text": "pdf"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st engine.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.SearchTerm != "pdf" {
		t.Errorf("searchTerm = %q", st.SearchTerm)
	}
}

func TestDirectQuery_RejectsUnsubmittable(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/query", `{"size": 10}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["code"] != "not_submittable" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestRequestWindow_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/window", `{"skip": -1, "take": 10}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative skip: status = %d, want 400", resp.StatusCode)
	}
}

func TestResolveDownloads(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/download", `{"paths": ["a.pdf", "b.pdf"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Targets []download.Target `json:"targets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode targets: %v", err)
	}
	if len(body.Targets) != 1 || !strings.Contains(body.Targets[0].URL, "paths=") {
		t.Errorf("targets = %+v", body.Targets)
	}
}

func TestStoreFailure_LogsThroughRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	eng := engine.New(func(string) (store.Store, error) { return failingStore{}, nil })
	if err := eng.SetIndex(context.Background(), "idx"); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	srv := NewServer(eng, nil, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context(), zap.New(core))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	srv.Routes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	resp := postJSON(t, ts.URL+"/api/v1/search", `{"text": "pdf"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if logs.FilterMessage("store operation failed").Len() != 1 {
		t.Errorf("expected one warning on the request-scoped logger, got %d entries", logs.Len())
	}
}

func TestSaveConfig_NotConfigured(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/config/save", `{}`)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501 without a config store", resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
