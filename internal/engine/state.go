package engine

import (
	"github.com/twpayne/go-geom"

	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

const defaultTake = 250

// SampleAll is the point-budget sentinel selecting server-side geohash
// binning instead of client-side point sampling.
const SampleAll = -1

// TermCount is a ranked (term, match count) pair used by suggestion and
// completion results.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// GeoBin is one geohash cell: key, document count, and bucket centroid in
// lon/lat order.
type GeoBin struct {
	Key   string     `json:"key"`
	Count int        `json:"count"`
	Coord geom.Coord `json:"coord"`
}

// State is the engine's observable state. Snapshots returned by
// Engine.State share slice and map storage with the engine; treat them as
// read-only.
type State struct {
	// Index and validation.
	Index          string `json:"index"`
	ValidIndex     bool   `json:"validIndex"`
	LoadingIndex   bool   `json:"loadingIndex"`
	LoadingMapping bool   `json:"loadingMapping"`

	// Query inputs. Query is the compiled payload and the single source
	// of truth for every dependent view.
	SearchTerm  string              `json:"searchTerm"`
	Filters     []query.Filter      `json:"filters"`
	DirectQuery query.Body          `json:"directQuery,omitempty"`
	Query       query.Body          `json:"query"`
	Sort        []map[string]string `json:"sort"`

	// Result window.
	Skip             int              `json:"skip"`
	Take             int              `json:"take"`
	Total            int              `json:"total"`
	Documents        []store.Document `json:"documents"`
	Selected         []int            `json:"selected"`
	LoadingDocuments bool             `json:"loadingDocuments"`
	DocumentError    bool             `json:"documentError"`

	// Derived views, all scoped to Query.
	SuggestionsEnabled  bool                           `json:"suggestionsEnabled"`
	Suggestions         []TermCount                    `json:"suggestions"`
	Completions         []TermCount                    `json:"completions"`
	Aggregations        map[string][]store.TermsBucket `json:"aggregations"`
	SkippedAggregations []string                       `json:"skippedAggregations,omitempty"`
	GeoBins             []GeoBin                       `json:"geoBins"`
	SigTerms            []store.TermsBucket            `json:"sigTerms"`
	Samples             []store.Document               `json:"samples"`

	// Schema-derived field sets.
	AllFields        []string `json:"allFields"`
	KeywordFields    []string `json:"keywordFields"`
	CompletionFields []string `json:"completionFields"`

	// Analyst-shaped orderings and visibility sets.
	ColumnOrder         []string `json:"columnOrder"`
	FilterList          []string `json:"filterList"`
	NonVisibleFields    []string `json:"nonVisibleFields"`
	NonFilterableFields []string `json:"nonFilterableFields"`
	HiddenVizFields     []string `json:"hiddenVizFields"`

	// View configuration.
	SuggestionField  string `json:"suggestionField"`
	CompletionField  string `json:"completionField"`
	GeoField         string `json:"geoSpatialField"`
	SigTermsField    string `json:"sigTermsField"`
	ActiveField      string `json:"activeField"`
	ActiveYField     string `json:"activeYField"`
	ActiveColorField string `json:"activeColorField"`
	SampleSize       int    `json:"sampleSize"`

	// Download resolution settings.
	DownloadPathField string `json:"downloadPathField"`
	DownloadMode      string `json:"downloadMode"`
	RawFileRoot       string `json:"rawFileRoot"`
	S3Bucket          string `json:"s3Bucket"`

	// Session-only view state; exported with the config but never applied
	// on import.
	ActivePage  int      `json:"activePage"`
	ActiveView  string   `json:"activeView"`
	RecentFiles []string `json:"recentFiles"`

	AggregationAlerts bool `json:"aggregationAlerts"`
}

func defaultState(take int) State {
	return State{
		Take:               take,
		Query:              query.Body{"query": query.Body{"match_all": query.Body{}}},
		Sort:               []map[string]string{},
		Aggregations:       map[string][]store.TermsBucket{},
		SuggestionsEnabled: true,
		SuggestionField:    "q_keys",
		CompletionField:    "q_parent_and_keys",
		GeoField:           "host_location",
		SigTermsField:      "tk_creator_tool",
		ActiveYField:       "count",
		ActiveColorField:   "auto",
		ActiveView:         "explore",
		SampleSize:         SampleAll,
		DownloadMode:       "api",
		AggregationAlerts:  true,
	}
}

// resetQueryScopedLocked clears everything computed against the previous
// query. Caller holds the engine lock.
func (e *Engine) resetQueryScopedLocked() {
	st := &e.state
	st.Skip = 0
	st.Take = e.defaultTake
	st.Total = 0
	st.Documents = nil
	st.Selected = nil
	st.LoadingDocuments = false
	st.DocumentError = false
	st.Suggestions = nil
	st.Completions = nil
	st.Aggregations = map[string][]store.TermsBucket{}
	st.SkippedAggregations = nil
	st.GeoBins = nil
	st.SigTerms = nil
	st.Samples = nil
	e.viewportSet = false
}
