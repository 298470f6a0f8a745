package storage

import (
	"fmt"

	"github.com/geoaziz/contentcore/pkg/config"
)

// Open constructs the Medium selected by the storage configuration.
func Open(cfg *config.Config) (Medium, error) {
	switch cfg.Storage.Backend {
	case "", "file":
		return NewFileMedium(cfg.Storage.DataDir)
	case "sqlite":
		return NewSQLiteMedium(cfg.Storage.SQLitePath)
	case "postgres":
		return NewPostgresMedium(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
