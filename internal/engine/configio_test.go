package engine

import (
	"context"
	"encoding/json"
	"testing"
)

func mappingJSON(properties string) json.RawMessage {
	return json.RawMessage(`{"test-index": {"mappings": {"properties": ` + properties + `}}}`)
}

// --- Tests ---

func TestExportConfig_SnapshotsActiveIndex(t *testing.T) {
	m := &mockStore{}
	e := newTestEngine(t, m)

	e.mutate(func(st *State) {
		st.ColumnOrder = []string{"b", "a"}
		st.SuggestionField = "custom_keys"
		st.ActivePage = 3
	})

	cfg := e.ExportConfig()
	if cfg.Index != "test-index" {
		t.Errorf("index = %q", cfg.Index)
	}
	ic, ok := cfg.Mappings["test-index"]
	if !ok {
		t.Fatal("active index missing from exported mappings")
	}
	if len(ic.ColumnOrder) != 2 || ic.ColumnOrder[0] != "b" {
		t.Errorf("columnOrder = %v", ic.ColumnOrder)
	}
	if ic.SuggestionField == nil || *ic.SuggestionField != "custom_keys" {
		t.Error("suggestionField not exported")
	}
	if ic.ActivePage == nil || *ic.ActivePage != 3 {
		t.Error("session view state should be exported")
	}
}

func TestImportConfig_SkipsTransientFields(t *testing.T) {
	m := &mockStore{}
	m.mappingFn = func(context.Context) (json.RawMessage, error) {
		return mappingJSON(`{"a": {"type": "keyword"}, "b": {"type": "text"}}`), nil
	}
	e := newTestEngine(t, m)

	page := 7
	view := "geospatial"
	field := "imported_keys"
	cfg := FullConfig{
		Index:   "test-index",
		Version: "1.0.0",
		Mappings: map[string]PersistedIndexConfig{
			"test-index": {
				SuggestionField: &field,
				ActivePage:      &page,
				ActiveView:      &view,
				RecentFiles:     []string{"/tmp/x.pdf"},
			},
		},
	}

	if err := e.ImportConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}

	st := e.State()
	if st.SuggestionField != "imported_keys" {
		t.Errorf("suggestionField = %q, want imported value", st.SuggestionField)
	}
	if st.ActivePage == 7 || st.ActiveView == "geospatial" || st.RecentFiles != nil {
		t.Error("session-only fields must not be applied on import")
	}
	if q, ok := st.Query["query"].(map[string]any); !ok {
		t.Error("import should reset to a compiled query")
	} else if _, ok := q["match_all"]; !ok {
		t.Errorf("import should reset to match_all, got %v", q)
	}
}

func TestImportConfig_Idempotent(t *testing.T) {
	m := &mockStore{}
	m.mappingFn = func(context.Context) (json.RawMessage, error) {
		return mappingJSON(`{"a": {"type": "keyword"}}`), nil
	}
	e := newTestEngine(t, m)

	field := "k"
	cfg := FullConfig{
		Index: "test-index",
		Mappings: map[string]PersistedIndexConfig{
			"test-index": {SuggestionField: &field, FilterList: []string{"a"}},
		},
	}

	if err := e.ImportConfig(context.Background(), cfg); err != nil {
		t.Fatalf("first import: %v", err)
	}
	first := e.State()

	if err := e.ImportConfig(context.Background(), cfg); err != nil {
		t.Fatalf("second import: %v", err)
	}
	second := e.State()

	if first.SuggestionField != second.SuggestionField ||
		len(first.FilterList) != len(second.FilterList) ||
		first.Index != second.Index {
		t.Error("re-importing the same document must be a no-op for config state")
	}
}

func TestImportConfig_ReplacesAccumulatedMappings(t *testing.T) {
	m := &mockStore{}
	m.mappingFn = func(context.Context) (json.RawMessage, error) {
		return mappingJSON(`{"a": {"type": "keyword"}}`), nil
	}
	e := newTestEngine(t, m)

	// Visit a second index so the session accumulates an entry for it.
	if err := e.SwitchIndexConfig(context.Background(), "old-index"); err != nil {
		t.Fatalf("switch to old-index: %v", err)
	}
	if err := e.SwitchIndexConfig(context.Background(), "test-index"); err != nil {
		t.Fatalf("switch back: %v", err)
	}

	cfg := FullConfig{
		Index: "test-index",
		Mappings: map[string]PersistedIndexConfig{
			"test-index": {FilterList: []string{"a"}},
		},
	}
	if err := e.ImportConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}

	out := e.ExportConfig()
	if _, ok := out.Mappings["old-index"]; ok {
		t.Errorf("import must replace the whole per-index map, export still carries old-index: %v", out.Mappings)
	}
	if _, ok := out.Mappings["test-index"]; !ok {
		t.Error("imported index missing from export")
	}
}

func TestSwitchIndexConfig_RestoresStoredConfig(t *testing.T) {
	m := &mockStore{}
	m.mappingFn = func(context.Context) (json.RawMessage, error) {
		return mappingJSON(`{"x": {"type": "text"}, "y": {"type": "keyword"}}`), nil
	}
	e := newTestEngine(t, m)

	// Analyst reorders columns away from schema order on the first index.
	e.mutate(func(st *State) {
		st.ColumnOrder = []string{"y", "x"}
		st.ActiveView = "crossfilter"
	})

	if err := e.SwitchIndexConfig(context.Background(), "other-index"); err != nil {
		t.Fatalf("switch to other-index: %v", err)
	}
	if got := e.State().ColumnOrder; len(got) != 2 || got[0] != "x" {
		t.Errorf("fresh index should start in schema order, got %v", got)
	}

	if err := e.SwitchIndexConfig(context.Background(), "test-index"); err != nil {
		t.Fatalf("switch back: %v", err)
	}
	st := e.State()
	if len(st.ColumnOrder) != 2 || st.ColumnOrder[0] != "y" {
		t.Errorf("column order not restored: %v", st.ColumnOrder)
	}
	if st.ActiveView != "crossfilter" {
		t.Errorf("session view state should be restored on in-session switch, got %q", st.ActiveView)
	}
}
