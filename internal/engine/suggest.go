package engine

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// resolveSuggestions runs the second phase of suggestion resolution after a
// document fetch whose query carried a suggest block. The suggester only
// ranks candidates by edit distance; both phases below recover a real match
// count per candidate under the active query context. Either phase failing
// degrades to an empty list for that phase and never disturbs the fetched
// documents.
func (e *Engine) resolveSuggestions(ctx context.Context, epoch uint64, s store.Store, resp *store.Response, sentBody query.Body) {
	e.mu.Lock()
	suggestionField := e.state.SuggestionField
	completionField := e.state.CompletionField
	e.mu.Unlock()

	e.rankTermSuggestions(ctx, epoch, s, resp, suggestionField)
	e.rankCompletions(ctx, epoch, s, resp, completionField, filterClauseOf(sentBody))
}

// rankTermSuggestions issues one combined count query with a filtered-count
// aggregation per candidate, original text included.
func (e *Engine) rankTermSuggestions(ctx context.Context, epoch uint64, s store.Store, resp *store.Response, suggestionField string) {
	entries := resp.Suggest["similarity-suggestion"]
	if len(entries) == 0 || len(entries[0].Options) == 0 {
		e.apply(epoch, func(st *State) { st.Suggestions = nil })
		return
	}

	candidates := make([]string, 0, len(entries[0].Options)+1)
	candidates = append(candidates, entries[0].Text)
	for _, option := range entries[0].Options {
		candidates = append(candidates, option.Text)
	}

	body := query.SuggestionCounts(candidates, suggestionField)
	countResp, err := e.search(ctx, s, "suggestions", body)
	if err != nil {
		e.apply(epoch, func(st *State) { st.Suggestions = nil })
		return
	}

	counts := make([]TermCount, 0, len(candidates))
	for _, candidate := range candidates {
		raw, ok := countResp.Aggregations[candidate]
		if !ok {
			continue
		}
		var agg store.CountAggregation
		if err := json.Unmarshal(raw, &agg); err != nil {
			continue
		}
		counts = append(counts, TermCount{Term: candidate, Count: agg.DocCount})
	}
	e.apply(epoch, func(st *State) { st.Suggestions = counts })
}

// rankCompletions issues one count query per completion candidate, scoped
// by the main query's filter clause, awaits all of them, and ranks.
func (e *Engine) rankCompletions(ctx context.Context, epoch uint64, s store.Store, resp *store.Response, completionField string, filterClause any) {
	entries := resp.Suggest["completion"]
	if len(entries) == 0 || len(entries[0].Options) == 0 {
		e.apply(epoch, func(st *State) { st.Completions = nil })
		return
	}

	options := entries[0].Options
	results := make([]TermCount, len(options))
	errs := make([]error, len(options))

	var wg sync.WaitGroup
	for i, option := range options {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			body := query.CompletionCount(completionField, text, filterClause)
			countResp, err := e.search(ctx, s, "completions", body)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = TermCount{Term: text, Count: countResp.Hits.Total.Value}
		}(i, option.Text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			e.apply(epoch, func(st *State) { st.Completions = nil })
			return
		}
	}

	RankCompletions(results)
	e.apply(epoch, func(st *State) { st.Completions = results })
}

// RankCompletions sorts in place by count descending; ties break by term
// descending lexicographically. The descending tie-break matches the
// shipped ranking and is pinned by tests pending a product decision.
func RankCompletions(completions []TermCount) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Count != completions[j].Count {
			return completions[i].Count > completions[j].Count
		}
		return completions[i].Term > completions[j].Term
	})
}

// filterClauseOf extracts the bool filter clause from a compiled payload,
// or nil when the payload has none (match-all, direct queries).
func filterClauseOf(body query.Body) any {
	q, ok := body["query"].(map[string]any)
	if !ok {
		return nil
	}
	b, ok := q["bool"].(map[string]any)
	if !ok {
		return nil
	}
	return b["filter"]
}
