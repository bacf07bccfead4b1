package engine

import (
	"context"

	"github.com/jpl-safedocs/file-observatory/internal/version"
)

// PersistedIndexConfig is the per-index slice of analyst configuration that
// survives restarts. Scalar fields are pointers so an absent key in an older
// export is distinguishable from an explicit zero and leaves the current
// value untouched.
type PersistedIndexConfig struct {
	ColumnOrder         []string `json:"columnOrder,omitempty"`
	FilterList          []string `json:"filterList,omitempty"`
	NonVisibleFields    []string `json:"nonVisibleFields,omitempty"`
	NonFilterableFields []string `json:"nonFilterableFields,omitempty"`
	HiddenVizFields     []string `json:"hiddenVizFields,omitempty"`

	SuggestionsEnabled *bool   `json:"suggestionsEnabled,omitempty"`
	SuggestionField    *string `json:"suggestionField,omitempty"`
	CompletionField    *string `json:"completionField,omitempty"`
	GeoField           *string `json:"geoSpatialField,omitempty"`
	SigTermsField      *string `json:"sigTermsField,omitempty"`
	ActiveField        *string `json:"activeField,omitempty"`
	ActiveYField       *string `json:"activeYField,omitempty"`
	ActiveColorField   *string `json:"activeColorField,omitempty"`
	SampleSize         *int    `json:"sampleSize,omitempty"`

	DownloadPathField *string `json:"downloadPathField,omitempty"`
	DownloadMode      *string `json:"downloadMode,omitempty"`
	RawFileRoot       *string `json:"rawFileRoot,omitempty"`
	S3Bucket          *string `json:"s3Bucket,omitempty"`

	// Session-only view state. Exported for completeness, applied only
	// when switching between indexes inside one session, never on import.
	ActivePage  *int     `json:"activePage,omitempty"`
	ActiveView  *string  `json:"activeView,omitempty"`
	RecentFiles []string `json:"recentFiles,omitempty"`
}

// FullConfig is the portable configuration document: the active index, the
// exporting build's version, and one PersistedIndexConfig per index visited
// this session.
type FullConfig struct {
	Index    string                          `json:"index"`
	Version  string                          `json:"version"`
	Mappings map[string]PersistedIndexConfig `json:"mappings"`
}

// ExportConfig snapshots the active index's configuration into the
// accumulated per-index map and returns the portable document.
func (e *Engine) ExportConfig() FullConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.snapshotIndexConfigLocked()
	mappings := make(map[string]PersistedIndexConfig, len(e.indexConfigs))
	for idx, cfg := range e.indexConfigs {
		mappings[idx] = cfg
	}
	return FullConfig{
		Index:    e.state.Index,
		Version:  version.Version,
		Mappings: mappings,
	}
}

// ImportConfig adopts a portable configuration document: the engine
// replaces the session's whole per-index map with the document's mappings,
// switches to the document's index, applies its persisted configuration
// with session-only fields skipped, refreshes the schema, and resets to a
// match-everything query over the new index. Indexes visited before the
// import but absent from the document are forgotten.
func (e *Engine) ImportConfig(ctx context.Context, cfg FullConfig) error {
	e.mu.Lock()
	e.indexConfigs = make(map[string]PersistedIndexConfig, len(cfg.Mappings))
	for idx, ic := range cfg.Mappings {
		e.indexConfigs[idx] = ic
	}
	e.mu.Unlock()

	if err := e.SetIndex(ctx, cfg.Index); err != nil {
		return err
	}
	if ic, ok := cfg.Mappings[cfg.Index]; ok {
		e.applyIndexConfig(ic, false)
	}
	if err := e.FetchSchema(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.state.SearchTerm = ""
	e.state.DirectQuery = nil
	compiled := e.compileLocked()
	e.mu.Unlock()
	e.SetQuery(compiled)
	return e.FetchDocuments(ctx)
}

// SwitchIndexConfig changes the active index inside a session. The leaving
// index's configuration is snapshotted first; if the target index was
// visited before, its configuration is restored in full, session-only
// fields included. A never-visited target starts from a fresh schema fetch.
func (e *Engine) SwitchIndexConfig(ctx context.Context, index string) error {
	e.mu.Lock()
	e.snapshotIndexConfigLocked()
	stored, known := e.indexConfigs[index]
	e.mu.Unlock()

	if err := e.SetIndex(ctx, index); err != nil {
		return err
	}
	if known {
		e.applyIndexConfig(stored, true)
	} else {
		e.mutate(func(st *State) {
			st.ColumnOrder = nil
			st.FilterList = nil
			st.NonVisibleFields = nil
			st.NonFilterableFields = nil
			st.HiddenVizFields = nil
		})
	}
	return e.FetchSchema(ctx)
}

// snapshotIndexConfigLocked records the active index's configuration in the
// per-index map. Caller holds the engine lock.
func (e *Engine) snapshotIndexConfigLocked() {
	if e.state.Index == "" {
		return
	}
	if e.indexConfigs == nil {
		e.indexConfigs = map[string]PersistedIndexConfig{}
	}
	st := &e.state
	e.indexConfigs[st.Index] = PersistedIndexConfig{
		ColumnOrder:         st.ColumnOrder,
		FilterList:          st.FilterList,
		NonVisibleFields:    st.NonVisibleFields,
		NonFilterableFields: st.NonFilterableFields,
		HiddenVizFields:     st.HiddenVizFields,
		SuggestionsEnabled:  ptr(st.SuggestionsEnabled),
		SuggestionField:     ptr(st.SuggestionField),
		CompletionField:     ptr(st.CompletionField),
		GeoField:            ptr(st.GeoField),
		SigTermsField:       ptr(st.SigTermsField),
		ActiveField:         ptr(st.ActiveField),
		ActiveYField:        ptr(st.ActiveYField),
		ActiveColorField:    ptr(st.ActiveColorField),
		SampleSize:          ptr(st.SampleSize),
		DownloadPathField:   ptr(st.DownloadPathField),
		DownloadMode:        ptr(st.DownloadMode),
		RawFileRoot:         ptr(st.RawFileRoot),
		S3Bucket:            ptr(st.S3Bucket),
		ActivePage:          ptr(st.ActivePage),
		ActiveView:          ptr(st.ActiveView),
		RecentFiles:         st.RecentFiles,
	}
}

// applyIndexConfig writes a persisted configuration into state. Session-only
// fields are applied only when includeTransient is set.
func (e *Engine) applyIndexConfig(cfg PersistedIndexConfig, includeTransient bool) {
	e.mutate(func(st *State) {
		st.ColumnOrder = cfg.ColumnOrder
		st.FilterList = cfg.FilterList
		st.NonVisibleFields = cfg.NonVisibleFields
		st.NonFilterableFields = cfg.NonFilterableFields
		st.HiddenVizFields = cfg.HiddenVizFields
		setIf(&st.SuggestionsEnabled, cfg.SuggestionsEnabled)
		setIf(&st.SuggestionField, cfg.SuggestionField)
		setIf(&st.CompletionField, cfg.CompletionField)
		setIf(&st.GeoField, cfg.GeoField)
		setIf(&st.SigTermsField, cfg.SigTermsField)
		setIf(&st.ActiveField, cfg.ActiveField)
		setIf(&st.ActiveYField, cfg.ActiveYField)
		setIf(&st.ActiveColorField, cfg.ActiveColorField)
		setIf(&st.SampleSize, cfg.SampleSize)
		setIf(&st.DownloadPathField, cfg.DownloadPathField)
		setIf(&st.DownloadMode, cfg.DownloadMode)
		setIf(&st.RawFileRoot, cfg.RawFileRoot)
		setIf(&st.S3Bucket, cfg.S3Bucket)
		if includeTransient {
			setIf(&st.ActivePage, cfg.ActivePage)
			setIf(&st.ActiveView, cfg.ActiveView)
			st.RecentFiles = cfg.RecentFiles
		}
	})
}

// SetRecentFiles replaces the session's recently opened file list.
func (e *Engine) SetRecentFiles(files []string) {
	e.mutate(func(st *State) { st.RecentFiles = files })
}

// SetActiveView records the visible visualization tab.
func (e *Engine) SetActiveView(view string) {
	e.mutate(func(st *State) { st.ActiveView = view })
}

// SetActivePage records the visible result page.
func (e *Engine) SetActivePage(page int) {
	e.mutate(func(st *State) { st.ActivePage = page })
}

func ptr[T any](v T) *T { return &v }

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
