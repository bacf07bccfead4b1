package engine

import (
	"context"

	"github.com/jpl-safedocs/file-observatory/internal/query"
)

// SetQuery replaces the compiled query and synchronously resets the result
// window and every query-scoped view. This is the consistency boundary:
// after SetQuery returns, nothing downstream holds data computed against
// the superseded query, and the bumped epoch guarantees late responses for
// it are dropped.
func (e *Engine) SetQuery(q query.Body) {
	e.mu.Lock()
	e.epoch++
	e.state.Query = q
	e.resetQueryScopedLocked()
	e.state.LoadingDocuments = e.store != nil
	e.mu.Unlock()
	e.notify()
}

// Search submits free text: recompiles the query from the text and active
// filters, resets dependent state, then fetches the first window and the
// facet aggregations.
func (e *Engine) Search(ctx context.Context, text string) error {
	e.mu.Lock()
	e.state.SearchTerm = text
	e.state.DirectQuery = nil
	compiled := e.compileLocked()
	e.mu.Unlock()

	e.SetQuery(compiled)
	err := e.FetchDocuments(ctx)
	e.fetchFilterListAggregations(ctx, nil)
	return err
}

// SetFilters replaces the active filter selections and recompiles.
func (e *Engine) SetFilters(ctx context.Context, filters []query.Filter) error {
	e.mu.Lock()
	e.state.Filters = filters
	compiled := e.compileLocked()
	e.mu.Unlock()

	e.SetQuery(compiled)
	err := e.FetchDocuments(ctx)
	e.fetchFilterListAggregations(ctx, nil)
	return err
}

// SetDirectQuery submits a hand-written query payload. The payload must
// parse as JSON with a non-empty "query" key; otherwise it is rejected with
// query.ErrNotSubmittable before any network call. Filters are not layered
// onto a direct query.
func (e *Engine) SetDirectQuery(ctx context.Context, raw []byte) error {
	direct, err := query.ParseDirect(raw)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state.DirectQuery = direct
	e.mu.Unlock()

	e.SetQuery(direct)
	fetchErr := e.FetchDocuments(ctx)
	e.fetchFilterListAggregations(ctx, direct)
	return fetchErr
}

// RequestWindow is called by the presentation layer when the visible row
// range changes. A fetch happens only when the window actually moved; the
// response is appended to the document buffer so earlier pages stay valid.
func (e *Engine) RequestWindow(ctx context.Context, skip, take int) error {
	e.mu.Lock()
	if skip == e.state.Skip && take == e.state.Take {
		e.mu.Unlock()
		return nil
	}
	e.state.Skip = skip
	e.state.Take = take
	e.mu.Unlock()
	e.notify()

	return e.fetchDocuments(ctx, false)
}

// SetSort replaces the sort specification and refetches with full-replace
// semantics: a sort change redefines what page zero means, so the existing
// buffer cannot be extended.
func (e *Engine) SetSort(ctx context.Context, sort []map[string]string) error {
	e.mu.Lock()
	e.state.Sort = sort
	e.mu.Unlock()
	e.notify()

	return e.fetchDocuments(ctx, true)
}

// FetchDocuments fetches the current window and appends it to the buffer.
func (e *Engine) FetchDocuments(ctx context.Context) error {
	return e.fetchDocuments(ctx, false)
}

func (e *Engine) fetchDocuments(ctx context.Context, replace bool) error {
	e.mu.Lock()
	epoch := e.epoch
	s := e.store
	st := e.state
	e.state.LoadingDocuments = s != nil
	e.mu.Unlock()
	e.notify()

	if s == nil {
		e.apply(epoch, func(st *State) {
			st.Documents = nil
			st.Selected = nil
			st.Total = 0
			st.LoadingDocuments = false
			st.DocumentError = true
		})
		return ErrNoEndpoint
	}

	body := query.Clone(st.Query)
	body["size"] = st.Take
	body["from"] = st.Skip
	body["sort"] = st.Sort

	resp, err := e.search(ctx, s, "documents", body)
	if err != nil {
		e.apply(epoch, func(st *State) {
			st.Documents = nil
			st.Selected = nil
			st.Total = 0
			st.LoadingDocuments = false
			st.DocumentError = true
		})
		return err
	}

	e.apply(epoch, func(st *State) {
		if replace {
			st.Documents = resp.Hits.Hits
		} else {
			st.Documents = append(st.Documents, resp.Hits.Hits...)
		}
		st.Total = resp.Hits.Total.Value
		st.LoadingDocuments = false
		st.DocumentError = false
	})

	if _, ok := st.Query["suggest"]; ok {
		e.resolveSuggestions(ctx, epoch, s, resp, body)
	}
	return nil
}

// SetSelected replaces the selected document rows.
func (e *Engine) SetSelected(rows []int) {
	e.mutate(func(st *State) { st.Selected = rows })
}

// compileLocked compiles the query from current inputs. Caller holds the
// engine lock.
func (e *Engine) compileLocked() query.Body {
	st := &e.state
	return query.Compile(query.Params{
		Text:            st.SearchTerm,
		SuggestionField: st.SuggestionField,
		CompletionField: st.CompletionField,
		Filters:         query.Group(st.Filters),
		WantSuggestions: st.SuggestionsEnabled,
		Direct:          st.DirectQuery,
	})
}

// fetchFilterListAggregations refreshes facet counts for the configured
// filter list; aggregation failures never propagate to the document path.
func (e *Engine) fetchFilterListAggregations(ctx context.Context, override query.Body) {
	e.mu.Lock()
	fields := e.state.FilterList
	e.mu.Unlock()
	if len(fields) == 0 {
		return
	}
	//nolint:errcheck // chunk failures are isolated and surfaced via state
	_ = e.FetchAggregations(ctx, fields, override)
}
