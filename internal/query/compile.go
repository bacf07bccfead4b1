// Package query compiles analyst-facing search state (free text, grouped
// filters, direct query overrides) into document-store request payloads.
// Everything here is pure: no state and no I/O. Empty inputs compile to
// no-op clauses.
package query

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jpl-safedocs/file-observatory/internal/geo"
)

// Body is a document-store request payload.
type Body = map[string]any

const (
	// maxTermBuckets caps per-field terms aggregations.
	maxTermBuckets = 1000

	// suggestionCountHits is the hits window requested alongside the
	// combined per-candidate count aggregations.
	suggestionCountHits = 1000

	suggestTermSize       = 100
	suggestMaxEdits       = 2
	suggestMinWordLength  = 2
	suggestMaxTermFreq    = 2000000
	completionSuggestSize = 2000
	lookupCompletionSize  = 10000
)

// ErrNotSubmittable marks a direct query that must not be sent to the store.
var ErrNotSubmittable = errors.New("direct query is not submittable")

// Params are the inputs to Compile.
type Params struct {
	Text            string
	SuggestionField string
	CompletionField string
	Filters         Grouped
	WantSuggestions bool
	Direct          Body
}

// Compile maps UI state to a search payload. Precedence: a non-empty direct
// query is used verbatim and filters are not layered onto it; the analyst
// is expected to express filtering inside the direct query. Otherwise free
// text compiles to a best-fields query_string, falling back to match_all,
// with grouped filters layered on as a bool filter array.
func Compile(p Params) Body {
	if len(p.Direct) > 0 {
		return p.Direct
	}

	var body Body
	switch {
	case p.Text != "":
		body = Body{
			"query": Body{
				"bool": Body{
					"must": Body{
						"query_string": Body{
							"query": EscapeText(p.Text),
							"type":  "best_fields",
						},
					},
				},
			},
		}
	case len(p.Filters) > 0:
		body = Body{
			"query": Body{
				"bool": Body{
					"must": Body{"match_all": Body{}},
				},
			},
		}
	default:
		return Body{"query": Body{"match_all": Body{}}}
	}

	if len(p.Filters) > 0 {
		body["query"].(Body)["bool"].(Body)["filter"] = FilterClauses(p.Filters)
	}

	if p.WantSuggestions && p.Text != "" && (p.SuggestionField != "" || p.CompletionField != "") {
		body["suggest"] = suggestBlock(p.Text, p.SuggestionField, p.CompletionField)
	}

	return body
}

// EscapeText doubles every forward slash. The store's query_string syntax
// treats a bare slash as a regexp delimiter.
func EscapeText(text string) string {
	return strings.ReplaceAll(text, "/", "//")
}

// FilterClauses compiles grouped filters into a bool filter array: one value
// per field becomes an exact match, several values become an OR of matches,
// and the per-field clauses are AND'd by the enclosing filter context.
func FilterClauses(filters Grouped) []Body {
	clauses := make([]Body, 0, len(filters))
	for _, field := range filters.Fields() {
		values := filters[field]
		if len(values) == 1 {
			clauses = append(clauses, Body{"match": Body{field: values[0]}})
			continue
		}
		should := make([]Body, 0, len(values))
		for _, value := range values {
			should = append(should, Body{"match": Body{field: value}})
		}
		clauses = append(clauses, Body{"bool": Body{"should": should}})
	}
	return clauses
}

func suggestBlock(text, suggestionField, completionField string) Body {
	suggest := Body{}
	if suggestionField != "" {
		suggest["similarity-suggestion"] = Body{
			"text": text,
			"term": Body{
				"field":           suggestionField,
				"suggest_mode":    "always",
				"sort":            "frequency",
				"size":            suggestTermSize,
				"max_edits":       suggestMaxEdits,
				"min_word_length": suggestMinWordLength,
				"max_term_freq":   suggestMaxTermFreq,
			},
		}
	}
	if completionField != "" {
		suggest["completion"] = Body{
			"prefix": text,
			"completion": Body{
				"field":           completionField + ".completion",
				"size":            completionSuggestSize,
				"skip_duplicates": true,
			},
		}
	}
	return suggest
}

// Aggregations compiles a size-0 payload carrying one terms aggregation per
// field, sharing the primary-match and filter logic of Compile. A direct
// override replaces the primary match verbatim.
func Aggregations(fields []string, filters Grouped, text string, direct Body) Body {
	body := Body{
		"aggs": Body{},
		"size": 0,
	}

	switch {
	case len(direct) > 0:
		body["query"] = direct["query"]
	case text != "" || len(filters) > 0:
		must := Body{}
		if text != "" {
			must["query_string"] = Body{
				"query": EscapeText(text),
				"type":  "best_fields",
			}
		} else {
			must["match_all"] = Body{}
		}
		boolQuery := Body{"must": must}
		if len(filters) > 0 {
			boolQuery["filter"] = FilterClauses(filters)
		}
		body["query"] = Body{"bool": boolQuery}
	default:
		body["query"] = Body{"match_all": Body{}}
	}

	aggs := body["aggs"].(Body)
	for _, field := range fields {
		aggs[field] = Body{
			"terms": Body{"field": field, "size": maxTermBuckets},
		}
	}
	return body
}

// SuggestionCounts compiles one combined count query with a filtered-count
// aggregation per candidate term. The suggester only ranks by edit distance;
// this payload recovers real corpus frequency per candidate.
func SuggestionCounts(candidates []string, suggestionField string) Body {
	aggs := Body{}
	for _, candidate := range candidates {
		aggs[candidate] = Body{
			"filter": Body{"term": Body{suggestionField: candidate}},
		}
	}
	return Body{
		"query":            Body{"match_all": Body{}},
		"aggs":             aggs,
		"track_total_hits": true,
		"size":             suggestionCountHits,
	}
}

// CompletionCount compiles a count query for one completion candidate,
// scoped by the main query's filter clause when present.
func CompletionCount(completionField, candidate string, filterClause any) Body {
	boolQuery := Body{
		"must": []Body{
			{"term": Body{completionField: candidate}},
		},
	}
	if filterClause != nil {
		boolQuery["filter"] = filterClause
	}
	return Body{
		"query":            Body{"bool": boolQuery},
		"size":             0,
		"track_total_hits": true,
	}
}

// GeoGrid attaches a viewport-bounded geohash-grid aggregation to a copy of
// the given base payload. Bucket centroids are requested alongside counts.
func GeoGrid(base Body, field string, vp geo.Viewport) Body {
	body := Clone(base)
	body["size"] = 0
	body["aggs"] = Body{
		"filter_agg": Body{
			"filter": Body{
				"geo_bounding_box": Body{
					"ignore_unmapped": true,
					field: Body{
						"top_left": Body{
							"lat": vp.TopLeft.Y(),
							"lon": vp.TopLeft.X(),
						},
						"bottom_right": Body{
							"lat": vp.BottomRight.Y(),
							"lon": vp.BottomRight.X(),
						},
					},
				},
			},
			"aggs": Body{
				"geo": Body{
					"geohash_grid": Body{
						"field":     field,
						"precision": vp.Zoom,
					},
					"aggs": Body{
						"coordinates": Body{
							"geo_centroid": Body{"field": field},
						},
					},
				},
			},
		},
	}
	return body
}

// SignificantTerms compiles a sampled significant-terms payload: terms
// over-represented in documents matching the text versus the background
// corpus, measured by chi-square.
func SignificantTerms(text, field string) Body {
	return Body{
		"query": Body{
			"query_string": Body{"query": text},
		},
		"size": 0,
		"aggregations": Body{
			"sample": Body{
				"sampler": Body{"shard_size": 100000},
				"aggregations": Body{
					"keywords": Body{
						"significant_terms": Body{
							"field": field + ".keyword",
							"chi_square": Body{
								"background_is_superset": false,
							},
						},
					},
				},
			},
		},
	}
}

// RandomSample compiles a random-score sample of documents matching the
// given primary match, projected to the requested source fields.
func RandomSample(primary Body, fields []string, size int) Body {
	if primary == nil {
		primary = Body{"match_all": Body{}}
	}
	body := Body{
		"query": Body{
			"function_score": Body{
				"query":        primary,
				"random_score": Body{},
			},
		},
		"size": size,
	}
	if len(fields) > 0 {
		body["_source"] = fields
	}
	return body
}

// ValueLookup compiles a filter-value autocomplete payload: a prefix
// completion for completion-capable fields, otherwise a substring regexp
// narrowed terms aggregation.
func ValueLookup(field, term string, isCompletion bool) Body {
	if isCompletion {
		return Body{
			"query": Body{"match_all": Body{}},
			"suggest": Body{
				"completion": Body{
					"prefix": term,
					"completion": Body{
						"field":           field + ".completion",
						"size":            lookupCompletionSize,
						"skip_duplicates": true,
					},
				},
			},
		}
	}
	return Body{
		"query": Body{
			"regexp": Body{
				field: Body{"value": ".*" + term + ".*"},
			},
		},
		"aggs": Body{
			field: Body{
				"terms": Body{"field": field, "size": maxTermBuckets},
			},
		},
	}
}

// ParseDirect validates a hand-written direct query. The payload must be
// JSON with a non-empty "query" key; anything else is rejected before any
// network call is made.
func ParseDirect(raw []byte) (Body, error) {
	var body Body
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, ErrNotSubmittable
	}
	queryClause, ok := body["query"].(map[string]any)
	if !ok || len(queryClause) == 0 {
		return nil, ErrNotSubmittable
	}
	return body, nil
}

// Clone deep-copies a payload so callers can attach paging or aggregation
// blocks without mutating the engine's compiled query.
func Clone(body Body) Body {
	if body == nil {
		return Body{}
	}
	out := make(Body, len(body))
	for key, value := range body {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case Body:
		return Clone(v)
	case []Body:
		out := make([]Body, len(v))
		for i := range v {
			out[i] = Clone(v[i])
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	default:
		return v
	}
}
