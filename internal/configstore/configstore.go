// Package configstore persists the portable analyst configuration document
// across sessions. Two backends exist: a JSON file for desktop deployments
// and Redis for shared server deployments.
package configstore

import (
	"context"
	"errors"

	"github.com/jpl-safedocs/file-observatory/internal/engine"
)

// ErrNotFound is returned by Load when no configuration has been saved yet.
var ErrNotFound = errors.New("no saved configuration")

// Store loads and saves the portable configuration document.
type Store interface {
	Load(ctx context.Context) (engine.FullConfig, error)
	Save(ctx context.Context, cfg engine.FullConfig) error
}
