// Package direct implements the store transport against the document
// store's own HTTP API: search and mapping requests are addressed to the
// store URL with the index name supplied per call.
package direct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"

	"github.com/jpl-safedocs/file-observatory/internal/store"
)

// Config holds the direct transport settings.
type Config struct {
	URL      string
	Index    string
	Username string
	Password string
}

// Store is the direct transport for one index.
type Store struct {
	es    *elasticsearch7.Client
	index string
}

// New creates a direct store. URL and index are required.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("store url is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	es, err := elasticsearch7.NewClient(elasticsearch7.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create store client: %w", err)
	}
	return &Store{es: es, index: cfg.Index}, nil
}

// Search posts the payload to the index's search endpoint.
func (s *Store) Search(ctx context.Context, body map[string]any) (*store.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", s.index, res.Status())
	}

	var out store.Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

// Mapping fetches the index mapping. The store already returns the
// canonical {"<index>": {"mappings": {...}}} shape.
func (s *Store) Mapping(ctx context.Context) (json.RawMessage, error) {
	res, err := s.es.Indices.GetMapping(
		s.es.Indices.GetMapping.WithContext(ctx),
		s.es.Indices.GetMapping.WithIndex(s.index),
	)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("mapping %s: %s", s.index, res.Status())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read mapping response: %w", err)
	}
	return raw, nil
}
