package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jpl-safedocs/file-observatory/internal/engine"
)

// FileStore persists the configuration document as a JSON file. Writes go
// through a temp file and rename so a crash mid-write cannot corrupt the
// saved configuration.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (engine.FullConfig, error) {
	var cfg engine.FullConfig
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return cfg, ErrNotFound
	}
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func (f *FileStore) Save(_ context.Context, cfg engine.FullConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}
