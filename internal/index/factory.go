package index

import (
	"fmt"
	"os"
	"path/filepath"

	"abook/internal/abook"
	"abook/internal/config"
)

// NewIndexFromConfig creates an Index implementation based on the index config type.
func NewIndexFromConfig(cfg config.IndexConfig) (abook.Index, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite index")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		return NewSQLiteIndex(filepath.Join(cfg.DataDir, "index.db"))
	case "memory":
		return NewSQLiteIndex(":memory:")
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}
