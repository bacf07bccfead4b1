// Package store defines the document-store transport contract shared by the
// direct and passthrough adapters, plus the response shapes the engine
// decodes.
package store

import (
	"context"
	"encoding/json"
)

// Store executes compiled query payloads against one index of the remote
// document store. Implementations differ only in transport: direct speaks
// to the store itself, passthrough to a templated proxy endpoint that wraps
// responses one level deeper.
type Store interface {
	// Search posts a query payload and returns the decoded response.
	Search(ctx context.Context, body map[string]any) (*Response, error)
	// Mapping fetches the index's field-type mapping in the canonical
	// {"<index>": {"mappings": {...}}} form.
	Mapping(ctx context.Context) (json.RawMessage, error)
}

// Response is the subset of the store's search response the engine reads.
type Response struct {
	Hits         Hits                       `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
	Suggest      map[string][]Suggest       `json:"suggest"`
}

// Hits carries the result window and the reported total.
type Hits struct {
	Total Total      `json:"total"`
	Hits  []Document `json:"hits"`
}

// Total is the store's reported match count.
type Total struct {
	Value int `json:"value"`
}

// Document is one fetched document: a store-assigned identifier plus an
// opaque field map. Immutable once fetched.
type Document struct {
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
}

// Suggest is one suggester entry: the analyzed input text and its
// candidate alternatives.
type Suggest struct {
	Text    string          `json:"text"`
	Options []SuggestOption `json:"options"`
}

// SuggestOption is a single suggested term.
type SuggestOption struct {
	Text string `json:"text"`
}

// TermsAggregation is a per-field bucket list.
type TermsAggregation struct {
	Buckets []TermsBucket `json:"buckets"`
}

// TermsBucket is one (value, count) facet bucket.
type TermsBucket struct {
	Key      any `json:"key"`
	DocCount int `json:"doc_count"`
}

// CountAggregation is a filtered-count aggregation result.
type CountAggregation struct {
	DocCount int `json:"doc_count"`
}

// GeoFilterAggregation is the bounding-box-filtered geohash grid result.
type GeoFilterAggregation struct {
	Geo struct {
		Buckets []GeoBucket `json:"buckets"`
	} `json:"geo"`
}

// GeoBucket is one geohash cell: key, document count, and centroid.
type GeoBucket struct {
	Key         string `json:"key"`
	DocCount    int    `json:"doc_count"`
	Coordinates struct {
		Location GeoPoint `json:"location"`
	} `json:"coordinates"`
}

// GeoPoint is a lat/lon pair as returned by the store.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SamplerAggregation is the sampled significant-terms result.
type SamplerAggregation struct {
	DocCount int              `json:"doc_count"`
	Keywords TermsAggregation `json:"keywords"`
}
