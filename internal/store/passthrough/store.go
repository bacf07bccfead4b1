// Package passthrough implements the store transport against a templated
// proxy endpoint: a single URL with an {INDEX} placeholder. The proxy wraps
// store responses one level deeper, so search results arrive under
// "documents" and mappings under "mapping"; this adapter unwraps both.
package passthrough

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// IndexPlaceholder is substituted with the active index name.
const IndexPlaceholder = "{INDEX}"

const defaultTimeout = 60 * time.Second

// Config holds the passthrough transport settings.
type Config struct {
	// Endpoint is the templated URL, e.g.
	// https://api.example.com/v1/search/{INDEX}.
	Endpoint string
	Index    string
	Username string
	Password string
	// Client overrides the HTTP client; nil uses a timeout-bounded default.
	Client *http.Client
}

// Store is the passthrough transport for one index.
type Store struct {
	url      string
	username string
	password string
	client   *http.Client
}

type searchEnvelope struct {
	Documents *store.Response `json:"documents"`
}

type mappingEnvelope struct {
	Mapping json.RawMessage `json:"mapping"`
}

// New creates a passthrough store. Endpoint and index are required.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("passthrough endpoint is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Store{
		url:      strings.ReplaceAll(cfg.Endpoint, IndexPlaceholder, cfg.Index),
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
	}, nil
}

// Search posts the payload to the templated endpoint and unwraps the
// "documents" envelope.
func (s *Store) Search(ctx context.Context, body map[string]any) (*store.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("search: unexpected status %s", res.Status)
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if envelope.Documents == nil {
		return nil, fmt.Errorf("search: response missing documents envelope")
	}
	return envelope.Documents, nil
}

// Mapping fetches <endpoint>/mapping and unwraps the "mapping" envelope.
func (s *Store) Mapping(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/mapping", nil)
	if err != nil {
		return nil, fmt.Errorf("build mapping request: %w", err)
	}
	s.auth(req)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("mapping: unexpected status %s", res.Status)
	}

	var envelope mappingEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode mapping response: %w", err)
	}
	if envelope.Mapping == nil {
		return nil, fmt.Errorf("mapping: response missing mapping envelope")
	}
	return envelope.Mapping, nil
}

func (s *Store) auth(req *http.Request) {
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}
}
