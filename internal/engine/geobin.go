package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/jpl-safedocs/file-observatory/internal/geo"
	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// viewportPollInterval is the watcher's recheck period in binned mode.
const viewportPollInterval = time.Second

// FetchGeoBins issues a geohash-grid aggregation bounded by the viewport
// against the current query and replaces the bin set. The normalized
// viewport is remembered as the sensitivity-gate baseline.
func (e *Engine) FetchGeoBins(ctx context.Context, vp geo.Viewport) error {
	e.mu.Lock()
	epoch := e.epoch
	s := e.store
	base := e.state.Query
	field := e.state.GeoField
	e.mu.Unlock()

	if s == nil || field == "" {
		e.apply(epoch, func(st *State) { st.GeoBins = nil })
		return ErrNoEndpoint
	}

	normalized := geo.Normalize(vp)
	body := query.GeoGrid(base, field, normalized)

	resp, err := e.search(ctx, s, "geo", body)
	if err != nil {
		e.apply(epoch, func(st *State) { st.GeoBins = nil })
		return err
	}

	var agg store.GeoFilterAggregation
	if raw, ok := resp.Aggregations["filter_agg"]; ok {
		if err := json.Unmarshal(raw, &agg); err != nil {
			e.log.Warn("bad geo aggregation payload", zap.Error(err))
		}
	}

	bins := make([]GeoBin, 0, len(agg.Geo.Buckets))
	for _, bucket := range agg.Geo.Buckets {
		bins = append(bins, GeoBin{
			Key:   bucket.Key,
			Count: bucket.DocCount,
			Coord: geom.Coord{bucket.Coordinates.Location.Lon, bucket.Coordinates.Location.Lat},
		})
	}

	if e.apply(epoch, func(st *State) { st.GeoBins = bins }) {
		e.mu.Lock()
		e.lastViewport = normalized
		e.viewportSet = true
		e.mu.Unlock()
	}
	return nil
}

// SampledPoints parses lon/lat coordinates out of the already-fetched
// document buffer; the sampled rendering mode needs no extra request.
func (e *Engine) SampledPoints() []geom.Coord {
	e.mu.Lock()
	docs := e.state.Documents
	field := e.state.GeoField
	e.mu.Unlock()

	points := make([]geom.Coord, 0, len(docs))
	for _, doc := range docs {
		raw, ok := doc.Source[field].(string)
		if !ok {
			continue
		}
		if point, ok := geo.ParsePoint(raw); ok {
			points = append(points, point)
		}
	}
	return points
}

// WatchViewport polls the current viewport once per second while the point
// budget selects binned mode, refetching only when the change since the
// last fetch crosses a sensitivity threshold. This throttles requests
// during continuous pan/zoom gestures. Returns when ctx is done.
func (e *Engine) WatchViewport(ctx context.Context, current func() geo.Viewport) {
	ticker := time.NewTicker(viewportPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.State().SampleSize != SampleAll {
				continue
			}
			cur := geo.Normalize(current())

			e.mu.Lock()
			last := e.lastViewport
			set := e.viewportSet
			e.mu.Unlock()

			if !set || geo.Exceeds(last, cur) {
				//nolint:errcheck // failure already clears the bin view
				_ = e.FetchGeoBins(ctx, cur)
			}
		}
	}
}

// SetGeoField selects the geospatial source field.
func (e *Engine) SetGeoField(field string) {
	e.mutate(func(st *State) { st.GeoField = field })
}

// SetSampleSize selects the point budget; SampleAll switches to server-side
// binning. Neither mode reuses the other's state.
func (e *Engine) SetSampleSize(size int) {
	e.mutate(func(st *State) {
		st.SampleSize = size
		st.GeoBins = nil
	})
	e.mu.Lock()
	e.viewportSet = false
	e.mu.Unlock()
}
