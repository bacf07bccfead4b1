package engine

import (
	"context"
	"encoding/json"

	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// FetchSigTerms computes terms statistically over-represented in documents
// matching the current search text versus the background corpus. A no-op
// when the text or the configured field is empty.
func (e *Engine) FetchSigTerms(ctx context.Context) error {
	e.mu.Lock()
	epoch := e.epoch
	s := e.store
	text := e.state.SearchTerm
	field := e.state.SigTermsField
	e.mu.Unlock()

	if text == "" || field == "" {
		return nil
	}
	if s == nil {
		e.apply(epoch, func(st *State) { st.SigTerms = nil })
		return ErrNoEndpoint
	}

	body := query.SignificantTerms(text, field)
	resp, err := e.search(ctx, s, "sigterms", body)
	if err != nil {
		e.apply(epoch, func(st *State) { st.SigTerms = nil })
		return err
	}

	var sampler store.SamplerAggregation
	if raw, ok := resp.Aggregations["sample"]; ok {
		if err := json.Unmarshal(raw, &sampler); err != nil {
			e.apply(epoch, func(st *State) { st.SigTerms = nil })
			return nil
		}
	}
	e.apply(epoch, func(st *State) { st.SigTerms = sampler.Keywords.Buckets })
	return nil
}

// SetSigTermsField selects the significant-terms field.
func (e *Engine) SetSigTermsField(field string) {
	e.mutate(func(st *State) { st.SigTermsField = field })
}
