package observatory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpl-safedocs/file-observatory/internal/download"
	"github.com/jpl-safedocs/file-observatory/internal/engine"
	"github.com/jpl-safedocs/file-observatory/internal/query"
)

// Re-exported request/response types so callers need no internal imports.
type (
	// Filter is one (field, value) selection.
	Filter = query.Filter
	// State is the engine state snapshot returned by every mutating call.
	State = engine.State
	// FullConfig is the portable analyst configuration document.
	FullConfig = engine.FullConfig
	// Target is one resolved download location.
	Target = download.Target
)

const defaultTimeout = 60 * time.Second

// Option configures the Client.
type Option interface {
	apply(*Client)
}

type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) { c.http = hc })
}

// WithBasicAuth sends the given credentials with every request.
func WithBasicAuth(username, password string) Option {
	return optionFunc(func(c *Client) {
		c.username = username
		c.password = password
	})
}

// Client is the observatory SDK entry point.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
}

// New creates a client for the observatory API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// State fetches the current engine state.
func (c *Client) State(ctx context.Context) (State, error) {
	var st State
	err := c.call(ctx, http.MethodGet, "/api/v1/state", nil, &st)
	return st, err
}

// Search submits free text and returns the updated state.
func (c *Client) Search(ctx context.Context, text string) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/search", map[string]any{"text": text}, &st)
	return st, err
}

// DirectQuery submits a hand-written query payload. Unsubmittable payloads
// are rejected by the server with ErrNotSubmittable.
func (c *Client) DirectQuery(ctx context.Context, raw json.RawMessage) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/query", raw, &st)
	return st, err
}

// SetFilters replaces the active filter selections.
func (c *Client) SetFilters(ctx context.Context, filters []Filter) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/filters", map[string]any{"filters": filters}, &st)
	return st, err
}

// Window requests the given result window.
func (c *Client) Window(ctx context.Context, skip, take int) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/window",
		map[string]any{"skip": skip, "take": take}, &st)
	return st, err
}

// Sort replaces the sort specification; the buffer is refetched from page
// zero.
func (c *Client) Sort(ctx context.Context, sort []map[string]string) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/sort", map[string]any{"sort": sort}, &st)
	return st, err
}

// SwitchIndex changes the active index, restoring any configuration stored
// for it this session.
func (c *Client) SwitchIndex(ctx context.Context, index string) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/index", map[string]any{"index": index}, &st)
	return st, err
}

// RefreshSchema refetches the index mapping and re-derives the field sets.
func (c *Client) RefreshSchema(ctx context.Context) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/schema/refresh", map[string]any{}, &st)
	return st, err
}

// Aggregations refreshes facet counts for the given fields; an empty list
// uses the configured filter list.
func (c *Client) Aggregations(ctx context.Context, fields []string) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/aggregations",
		map[string]any{"fields": fields}, &st)
	return st, err
}

// ValueLookup returns candidate filter values for a field matching term.
func (c *Client) ValueLookup(ctx context.Context, field, term string) ([]string, error) {
	path := "/api/v1/aggregations/lookup?field=" + url.QueryEscape(field) +
		"&term=" + url.QueryEscape(term)
	var out struct {
		Values []string `json:"values"`
	}
	err := c.call(ctx, http.MethodGet, path, nil, &out)
	return out.Values, err
}

// Viewport submits a map viewport and returns the refreshed geo bins.
func (c *Client) Viewport(ctx context.Context, topLeft, bottomRight [2]float64, zoom int) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/geo/viewport", map[string]any{
		"topLeft":     topLeft,
		"bottomRight": bottomRight,
		"zoom":        zoom,
	}, &st)
	return st, err
}

// SigTerms refreshes the significant-terms view for the current search.
func (c *Client) SigTerms(ctx context.Context) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/sigterms", map[string]any{}, &st)
	return st, err
}

// Download resolves document paths into download targets.
func (c *Client) Download(ctx context.Context, paths []string) ([]Target, error) {
	var out struct {
		Targets []Target `json:"targets"`
	}
	err := c.call(ctx, http.MethodPost, "/api/v1/download", map[string]any{"paths": paths}, &out)
	return out.Targets, err
}

// RandomDownload resolves download targets for a random sample of documents
// matching the current query.
func (c *Client) RandomDownload(ctx context.Context, count int) ([]Target, error) {
	var out struct {
		Targets []Target `json:"targets"`
	}
	err := c.call(ctx, http.MethodPost, "/api/v1/download/random", map[string]any{"count": count}, &out)
	return out.Targets, err
}

// ExportConfig fetches the portable configuration document.
func (c *Client) ExportConfig(ctx context.Context) (FullConfig, error) {
	var cfg FullConfig
	err := c.call(ctx, http.MethodGet, "/api/v1/config/export", nil, &cfg)
	return cfg, err
}

// ImportConfig adopts a portable configuration document.
func (c *Client) ImportConfig(ctx context.Context, cfg FullConfig) (State, error) {
	var st State
	err := c.call(ctx, http.MethodPost, "/api/v1/config/import", cfg, &st)
	return st, err
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Buffer
	if in != nil {
		body = &bytes.Buffer{}
		if err := json.NewEncoder(body).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var reader *bytes.Buffer
	if body != nil {
		reader = body
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
