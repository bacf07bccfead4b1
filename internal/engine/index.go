package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jpl-safedocs/file-observatory/internal/schema"
)

// SetIndex switches the active index: all query-scoped state and active
// filters are reset synchronously, then the index is validated by a
// mapping request. An empty name or unconfigured transport marks the index
// invalid without any network call.
func (e *Engine) SetIndex(ctx context.Context, index string) error {
	e.mu.Lock()
	e.epoch++
	e.state.Index = index
	e.state.LoadingIndex = true
	e.state.Filters = nil
	e.resetQueryScopedLocked()

	e.store = nil
	if index != "" && e.factory != nil {
		s, err := e.factory(index)
		if err != nil {
			e.log.Warn("store transport unavailable",
				zap.String("index", index), zap.Error(err))
		} else {
			e.store = s
		}
	}
	s := e.store
	if s == nil {
		e.state.ValidIndex = false
		e.state.LoadingIndex = false
	}
	e.mu.Unlock()
	e.notify()

	if s == nil {
		return ErrNoEndpoint
	}

	_, err := e.mapping(ctx, s)
	e.mutate(func(st *State) {
		st.ValidIndex = err == nil
		st.LoadingIndex = false
	})
	if err != nil {
		return fmt.Errorf("validate index %s: %w", index, err)
	}
	return nil
}

// FetchSchema fetches the index mapping and re-derives the field sets. The
// persisted column order and filter list are merged against the fresh
// schema: surviving fields keep the analyst's ordering, new fields are
// appended, removed fields are dropped. Facet aggregations are bootstrapped
// over the keyword fields only when none exist yet, so re-entrant schema
// fetches do no redundant work.
func (e *Engine) FetchSchema(ctx context.Context) error {
	e.mu.Lock()
	s := e.store
	e.state.LoadingMapping = true
	e.mu.Unlock()
	e.notify()

	if s == nil {
		e.mutate(func(st *State) {
			st.LoadingMapping = false
			st.LoadingIndex = false
		})
		return ErrNoEndpoint
	}

	raw, err := e.mapping(ctx, s)
	if err != nil {
		e.clearSchemaState()
		return fmt.Errorf("fetch schema: %w", err)
	}

	sch, err := schema.Parse(raw)
	if err != nil {
		e.clearSchemaState()
		return fmt.Errorf("fetch schema: %w", err)
	}

	var bootstrapAggregations bool
	e.mu.Lock()
	bootstrapAggregations = len(e.state.Aggregations) == 0
	e.state.AllFields = sch.AllFields
	e.state.KeywordFields = sch.KeywordFields
	e.state.CompletionFields = sch.CompletionFields
	e.state.ColumnOrder = schema.MergeOrder(e.state.ColumnOrder, sch.AllFields)
	e.state.FilterList = schema.MergeOrder(e.state.FilterList, sch.KeywordFields)
	e.state.ValidIndex = true
	e.state.LoadingMapping = false
	e.state.LoadingIndex = false
	e.mu.Unlock()
	e.notify()

	if bootstrapAggregations {
		//nolint:errcheck // chunk failures are isolated and surfaced via state
		_ = e.FetchAggregations(ctx, sch.KeywordFields, nil)
	}
	return nil
}

func (e *Engine) clearSchemaState() {
	e.mutate(func(st *State) {
		st.AllFields = nil
		st.KeywordFields = nil
		st.CompletionFields = nil
		st.ColumnOrder = nil
		st.FilterList = nil
		st.ValidIndex = false
		st.LoadingMapping = false
		st.LoadingIndex = false
	})
}
