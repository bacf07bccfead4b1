package engine

import (
	"context"
	"testing"

	"github.com/jpl-safedocs/file-observatory/internal/geo"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// --- Tests ---

func TestFetchGeoBins_DecodesBuckets(t *testing.T) {
	m := &mockStore{}
	m.searchFn = func(_ context.Context, body map[string]any) (*store.Response, error) {
		if body["size"] != 0 {
			t.Errorf("geo payload should carry size 0, got %v", body["size"])
		}
		return aggResponse(t, map[string]any{
			"filter_agg": map[string]any{
				"geo": map[string]any{
					"buckets": []map[string]any{
						{
							"key":       "9q8y",
							"doc_count": 17,
							"coordinates": map[string]any{
								"location": map[string]any{"lat": 37.77, "lon": -122.41},
							},
						},
					},
				},
			},
		}), nil
	}
	e := newTestEngine(t, m)

	if err := e.FetchGeoBins(context.Background(), geo.Default()); err != nil {
		t.Fatalf("FetchGeoBins: %v", err)
	}

	st := e.State()
	if len(st.GeoBins) != 1 {
		t.Fatalf("geoBins = %v", st.GeoBins)
	}
	bin := st.GeoBins[0]
	if bin.Key != "9q8y" || bin.Count != 17 {
		t.Errorf("bin = %+v", bin)
	}
	if bin.Coord.X() != -122.41 || bin.Coord.Y() != 37.77 {
		t.Errorf("centroid should be lon/lat ordered, got %v", bin.Coord)
	}
}

func TestFetchGeoBins_RequiresGeoField(t *testing.T) {
	m := &mockStore{}
	e := newTestEngine(t, m)
	e.SetGeoField("")
	before := len(m.searches())

	if err := e.FetchGeoBins(context.Background(), geo.Default()); err == nil {
		t.Fatal("expected error without a geo field")
	}
	if got := len(m.searches()); got != before {
		t.Error("no request should be issued without a geo field")
	}
}

func TestSampledPoints_ParsesDocumentCoordinates(t *testing.T) {
	m := &mockStore{}
	e := newTestEngine(t, m)

	e.mutate(func(st *State) {
		st.Documents = []store.Document{
			{ID: "a", Source: map[string]any{"host_location": "37.77,-122.41"}},
			{ID: "b", Source: map[string]any{"host_location": "not a point"}},
			{ID: "c", Source: map[string]any{}},
		}
	})

	points := e.SampledPoints()
	if len(points) != 1 {
		t.Fatalf("points = %v, want one parsed coordinate", points)
	}
	if points[0].X() != -122.41 || points[0].Y() != 37.77 {
		t.Errorf("point should be lon/lat ordered, got %v", points[0])
	}
}

func TestFetchSamples_SkippedInBinnedMode(t *testing.T) {
	m := &mockStore{}
	e := newTestEngine(t, m)
	before := len(m.searches())

	docs, err := e.FetchSamples(context.Background(), []string{"host_location"})
	if err != nil || docs != nil {
		t.Errorf("binned mode should be a no-op, got docs=%v err=%v", docs, err)
	}
	if got := len(m.searches()); got != before {
		t.Error("binned mode must not issue a sample request")
	}

	e.SetSampleSize(500)
	if _, err := e.FetchSamples(context.Background(), []string{"host_location"}); err != nil {
		t.Fatalf("FetchSamples: %v", err)
	}
	if got := len(m.searches()); got != before+1 {
		t.Errorf("expected one sample request, got %d", got-before)
	}
}

func TestRandomDownloadPaths_ExtractsPathField(t *testing.T) {
	m := &mockStore{}
	m.searchFn = func(_ context.Context, body map[string]any) (*store.Response, error) {
		q, _ := body["query"].(map[string]any)
		if _, ok := q["function_score"]; !ok {
			t.Errorf("expected a function_score sample query, got %v", q)
		}
		resp := hitsResponse(3, "a", "b", "c")
		resp.Hits.Hits[0].Source = map[string]any{"fs_path": "/corpus/a.pdf"}
		resp.Hits.Hits[2].Source = map[string]any{"fs_path": "/corpus/c.pdf"}
		return resp, nil
	}
	e := New(func(string) (store.Store, error) { return m, nil },
		WithDownload("api", "fs_path", "", ""))
	if err := e.SetIndex(context.Background(), "test-index"); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}

	paths, err := e.RandomDownloadPaths(context.Background(), 3)
	if err != nil {
		t.Fatalf("RandomDownloadPaths: %v", err)
	}
	want := []string{"/corpus/a.pdf", "/corpus/c.pdf"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestRandomDownloadPaths_RequiresPathField(t *testing.T) {
	m := &mockStore{}
	e := newTestEngine(t, m)
	before := len(m.searches())

	if _, err := e.RandomDownloadPaths(context.Background(), 5); err == nil {
		t.Fatal("expected error without a configured path field")
	}
	if got := len(m.searches()); got != before {
		t.Error("no request should be issued without a path field")
	}
}

func TestFetchSigTerms_NoopWithoutText(t *testing.T) {
	m := &mockStore{}
	e := newTestEngine(t, m)
	before := len(m.searches())

	if err := e.FetchSigTerms(context.Background()); err != nil {
		t.Fatalf("FetchSigTerms: %v", err)
	}
	if got := len(m.searches()); got != before {
		t.Error("empty search text must not issue a significant-terms request")
	}
}

func TestFetchSigTerms_DecodesSampledKeywords(t *testing.T) {
	m := &mockStore{}
	m.searchFn = func(_ context.Context, body map[string]any) (*store.Response, error) {
		if _, ok := body["aggregations"]; ok {
			return aggResponse(t, map[string]any{
				"sample": map[string]any{
					"doc_count": 1000,
					"keywords":  termsAgg("ghostscript", "scribus"),
				},
			}), nil
		}
		return hitsResponse(0), nil
	}
	e := newTestEngine(t, m)
	e.mutate(func(st *State) { st.SearchTerm = "pdf" })

	if err := e.FetchSigTerms(context.Background()); err != nil {
		t.Fatalf("FetchSigTerms: %v", err)
	}
	st := e.State()
	if len(st.SigTerms) != 2 || st.SigTerms[0].Key != "ghostscript" {
		t.Errorf("sigTerms = %v", st.SigTerms)
	}
}
