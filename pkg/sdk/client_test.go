package observatory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newStubServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func TestSearch_DecodesState(t *testing.T) {
	c := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"searchTerm": req["text"],
			"total":      42,
		})
	})

	st, err := c.Search(context.Background(), "acrobat")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if st.SearchTerm != "acrobat" || st.Total != 42 {
		t.Errorf("state = %+v", st)
	}
}

func TestDirectQuery_MapsNotSubmittable(t *testing.T) {
	c := newStubServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "not_submittable",
			"message": "direct query is not submittable",
		})
	})

	_, err := c.DirectQuery(context.Background(), json.RawMessage(`{"size": 1}`))
	if !errors.Is(err, ErrNotSubmittable) {
		t.Fatalf("expected ErrNotSubmittable, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("error = %v", err)
	}
}

func TestBasicAuthForwarded(t *testing.T) {
	var gotUser, gotPass string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer ts.Close()

	c := New(ts.URL, WithBasicAuth("analyst", "secret"))
	if _, err := c.State(context.Background()); err != nil {
		t.Fatalf("State: %v", err)
	}
	if gotUser != "analyst" || gotPass != "secret" {
		t.Errorf("auth = %q/%q", gotUser, gotPass)
	}
}

func TestDownload_DecodesTargets(t *testing.T) {
	c := newStubServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"targets": []map[string]string{{"url": "https://dl.example.com/get?paths=a.pdf"}},
		})
	})

	targets, err := c.Download(context.Background(), []string{"a.pdf"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(targets) != 1 || targets[0].URL == "" {
		t.Errorf("targets = %+v", targets)
	}
}
