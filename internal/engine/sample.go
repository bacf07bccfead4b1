package engine

import (
	"context"
	"fmt"

	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// FetchSamples pulls a random sample of documents projected to the given
// source fields, sized by the active point budget, for plotting. No-op in
// binned mode (budget SampleAll).
func (e *Engine) FetchSamples(ctx context.Context, fields []string) ([]store.Document, error) {
	e.mu.Lock()
	epoch := e.epoch
	s := e.store
	size := e.state.SampleSize
	e.mu.Unlock()

	if size < 0 {
		return nil, nil
	}
	if s == nil {
		return nil, ErrNoEndpoint
	}

	body := query.RandomSample(nil, fields, size)
	resp, err := e.search(ctx, s, "sample", body)
	if err != nil {
		e.apply(epoch, func(st *State) { st.Samples = nil })
		return nil, err
	}

	e.apply(epoch, func(st *State) { st.Samples = resp.Hits.Hits })
	return resp.Hits.Hits, nil
}

// RandomDocuments samples count documents matching the current primary
// match clause, for random download-set selection.
func (e *Engine) RandomDocuments(ctx context.Context, count int) ([]store.Document, error) {
	e.mu.Lock()
	s := e.store
	primary, _ := e.state.Query["query"].(map[string]any)
	e.mu.Unlock()

	if s == nil {
		return nil, ErrNoEndpoint
	}

	body := query.RandomSample(primary, nil, count)
	resp, err := e.search(ctx, s, "sample", body)
	if err != nil {
		return nil, err
	}
	return resp.Hits.Hits, nil
}

// RandomDownloadPaths samples count documents under the current primary
// match clause and returns their download path-field values. Documents
// missing the field are skipped.
func (e *Engine) RandomDownloadPaths(ctx context.Context, count int) ([]string, error) {
	e.mu.Lock()
	field := e.state.DownloadPathField
	e.mu.Unlock()

	if field == "" {
		return nil, fmt.Errorf("no download path field configured")
	}

	docs, err := e.RandomDocuments(ctx, count)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(docs))
	for _, doc := range docs {
		if p, ok := doc.Source[field].(string); ok && p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}
