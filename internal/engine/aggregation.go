package engine

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jpl-safedocs/file-observatory/internal/metrics"
	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// aggregationChunkSize bounds the number of terms aggregations per request.
// Chunking keeps per-request cost flat on indices with hundreds of fields.
const aggregationChunkSize = 10

// FetchAggregations refreshes facet counts for the given fields against the
// current query context. The field list is partitioned into chunks of ten;
// chunks are issued concurrently and merged additively as they complete.
// Field sets are disjoint by construction, so merges commute. A failed
// chunk only withholds its own fields: siblings keep going and previously
// merged results stay. After all chunks settle, skipped fields are surfaced
// once when alerting is enabled.
func (e *Engine) FetchAggregations(ctx context.Context, fields []string, override query.Body) error {
	e.mu.Lock()
	epoch := e.epoch
	s := e.store
	grouped := query.Group(e.state.Filters)
	text := e.state.SearchTerm
	alerts := e.state.AggregationAlerts
	e.state.Aggregations = map[string][]store.TermsBucket{}
	e.state.SkippedAggregations = nil
	e.mu.Unlock()
	e.notify()

	if s == nil {
		return ErrNoEndpoint
	}

	var wg sync.WaitGroup
	var skippedMu sync.Mutex
	var skipped []string

	for start := 0; start < len(fields); start += aggregationChunkSize {
		end := start + aggregationChunkSize
		if end > len(fields) {
			end = len(fields)
		}
		chunk := fields[start:end]

		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()

			body := query.Aggregations(chunk, grouped, text, override)
			resp, err := e.search(ctx, s, "aggregations", body)
			if err != nil {
				metrics.AggregationChunksSkippedTotal.Inc()
				skippedMu.Lock()
				skipped = append(skipped, chunk...)
				skippedMu.Unlock()
				return
			}

			merged := decodeTermsAggregations(resp.Aggregations, chunk)
			e.apply(epoch, func(st *State) {
				for field, buckets := range merged {
					st.Aggregations[field] = buckets
				}
			})
		}(chunk)
	}

	wg.Wait()

	if len(skipped) > 0 && alerts {
		sort.Strings(skipped)
		e.log.Warn("aggregation chunks skipped",
			zap.String("fields", strings.Join(skipped, ", ")))
		e.apply(epoch, func(st *State) { st.SkippedAggregations = skipped })
	}
	return nil
}

// FetchValueLookup returns candidate values for one filter field matching a
// typed term: prefix completions for completion-capable fields, otherwise
// terms-aggregation keys narrowed by a substring regexp. Failures degrade
// to an empty list.
func (e *Engine) FetchValueLookup(ctx context.Context, field, term string) ([]string, error) {
	e.mu.Lock()
	s := e.store
	isCompletion := false
	for _, f := range e.state.CompletionFields {
		if f == field {
			isCompletion = true
			break
		}
	}
	e.mu.Unlock()

	if s == nil {
		return nil, ErrNoEndpoint
	}

	body := query.ValueLookup(field, term, isCompletion)
	resp, err := e.search(ctx, s, "lookup", body)
	if err != nil {
		return nil, err
	}

	if isCompletion {
		entries := resp.Suggest["completion"]
		if len(entries) == 0 {
			return nil, nil
		}
		values := make([]string, 0, len(entries[0].Options))
		for _, option := range entries[0].Options {
			values = append(values, option.Text)
		}
		return values, nil
	}

	var agg store.TermsAggregation
	raw, ok := resp.Aggregations[field]
	if !ok || json.Unmarshal(raw, &agg) != nil {
		return nil, nil
	}
	values := make([]string, 0, len(agg.Buckets))
	for _, bucket := range agg.Buckets {
		key, ok := bucket.Key.(string)
		if ok && strings.Contains(key, term) {
			values = append(values, key)
		}
	}
	sort.Strings(values)
	return values, nil
}

// decodeTermsAggregations decodes the per-field terms buckets for the
// requested chunk fields, skipping anything that fails to decode.
func decodeTermsAggregations(raw map[string]json.RawMessage, fields []string) map[string][]store.TermsBucket {
	out := make(map[string][]store.TermsBucket, len(fields))
	for _, field := range fields {
		data, ok := raw[field]
		if !ok {
			continue
		}
		var agg store.TermsAggregation
		if err := json.Unmarshal(data, &agg); err != nil {
			continue
		}
		out[field] = agg.Buckets
	}
	return out
}
