// Package engine is the stateful core of the observatory: it owns the
// compiled query as the single source of truth and keeps the result window,
// facet aggregations, suggestions, geospatial bins, and significant terms
// consistent with it. Every outbound request is tagged with the query epoch
// at issue time; responses whose epoch no longer matches current state are
// discarded, so a late reply can never overwrite state belonging to a newer
// query.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jpl-safedocs/file-observatory/internal/geo"
	"github.com/jpl-safedocs/file-observatory/internal/metrics"
	"github.com/jpl-safedocs/file-observatory/internal/query"
	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// ErrNoEndpoint marks an operation short-circuited because no index or no
// store endpoint is configured. No network call is made.
var ErrNoEndpoint = errors.New("no document-store endpoint configured")

// StoreFactory builds a store transport for an index. Returning an error
// leaves the engine unconfigured (ErrNoEndpoint on fetches).
type StoreFactory func(index string) (store.Store, error)

// Engine is the search engine core. All exported methods are safe for
// concurrent use; state mutations happen under one lock and in-flight
// responses are epoch-checked at every merge point.
type Engine struct {
	mu    sync.Mutex
	state State
	epoch uint64
	store store.Store

	// lastViewport is the viewport of the last successful geo fetch,
	// used by the sensitivity gate.
	lastViewport geo.Viewport
	viewportSet  bool

	// indexConfigs accumulates per-index analyst configuration across
	// index switches within the session.
	indexConfigs map[string]PersistedIndexConfig

	factory     StoreFactory
	log         *zap.Logger
	defaultTake int

	watchMu  sync.Mutex
	watchers map[int]*watcher
	watchSeq int
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithDefaultTake sets the initial result-window size.
func WithDefaultTake(take int) Option {
	return func(e *Engine) {
		if take > 0 {
			e.defaultTake = take
		}
	}
}

// WithAggregationAlerts toggles the consolidated warning surfaced after
// aggregation chunks are skipped.
func WithAggregationAlerts(enabled bool) Option {
	return func(e *Engine) { e.state.AggregationAlerts = enabled }
}

// WithDownload sets the download path resolution defaults.
func WithDownload(mode, pathField, rawFileRoot, s3Bucket string) Option {
	return func(e *Engine) {
		e.state.DownloadMode = mode
		e.state.DownloadPathField = pathField
		e.state.RawFileRoot = rawFileRoot
		e.state.S3Bucket = s3Bucket
	}
}

// New creates an engine. The factory is consulted on every index switch;
// a nil factory leaves the engine permanently unconfigured (useful in
// tests that inject state directly).
func New(factory StoreFactory, opts ...Option) *Engine {
	e := &Engine{
		factory:     factory,
		log:         zap.NewNop(),
		defaultTake: defaultTake,
		watchers:    map[int]*watcher{},
	}
	e.state = defaultState(e.defaultTake)
	for _, o := range opts {
		o(e)
	}
	e.state.Take = e.defaultTake
	return e
}

// State returns a snapshot of the engine state. Slices and maps in the
// snapshot are shared with the engine and must be treated as immutable.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Watch registers a subscriber fired whenever selector's value changes
// between state transitions. Returns a cancel function.
func (e *Engine) Watch(selector func(State) any, cb func(State)) func() {
	e.watchMu.Lock()
	e.watchSeq++
	id := e.watchSeq
	e.watchers[id] = &watcher{selector: selector, cb: cb}
	e.watchMu.Unlock()
	return func() {
		e.watchMu.Lock()
		delete(e.watchers, id)
		e.watchMu.Unlock()
	}
}

type watcher struct {
	selector func(State) any
	cb       func(State)
	last     any
	hasLast  bool
}

// mutate applies an unconditional state transition and notifies watchers.
func (e *Engine) mutate(fn func(*State)) {
	e.mu.Lock()
	fn(&e.state)
	e.mu.Unlock()
	e.notify()
}

// apply applies a state transition only when the response's epoch still
// matches current state; stale responses are counted and dropped.
func (e *Engine) apply(epoch uint64, fn func(*State)) bool {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		metrics.StaleResponsesDiscardedTotal.Inc()
		e.log.Debug("discarded stale response",
			zap.Uint64("epoch", epoch))
		return false
	}
	fn(&e.state)
	e.mu.Unlock()
	e.notify()
	return true
}

func (e *Engine) notify() {
	snapshot := e.State()

	e.watchMu.Lock()
	fired := make([]func(State), 0, len(e.watchers))
	for _, w := range e.watchers {
		value := w.selector(snapshot)
		if w.hasLast && reflect.DeepEqual(value, w.last) {
			continue
		}
		w.last = value
		w.hasLast = true
		fired = append(fired, w.cb)
	}
	e.watchMu.Unlock()

	for _, cb := range fired {
		cb(snapshot)
	}
}

// currentEpoch returns the epoch and transport to tag a new request with.
func (e *Engine) currentEpoch() (uint64, store.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch, e.store
}

// search executes one store request with metrics and failure logging.
func (e *Engine) search(ctx context.Context, s store.Store, kind string, body query.Body) (*store.Response, error) {
	if s == nil {
		return nil, ErrNoEndpoint
	}
	start := time.Now()
	resp, err := s.Search(ctx, body)
	metrics.StoreRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		e.log.Warn("store request failed", zap.String("kind", kind), zap.Error(err))
	}
	metrics.StoreRequestsTotal.WithLabelValues(kind, status).Inc()
	return resp, err
}

// mapping fetches the index mapping with metrics and failure logging.
func (e *Engine) mapping(ctx context.Context, s store.Store) (json.RawMessage, error) {
	if s == nil {
		return nil, ErrNoEndpoint
	}
	start := time.Now()
	raw, err := s.Mapping(ctx)
	metrics.StoreRequestDuration.WithLabelValues("mapping").Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		e.log.Warn("mapping request failed", zap.Error(err))
	}
	metrics.StoreRequestsTotal.WithLabelValues("mapping", status).Inc()
	return raw, err
}
