package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
)

// LatestKey is the single key the last captured snapshot lives under.
const LatestKey = "lastCapturedData"

// ErrNoSnapshot is returned by Latest when nothing has been captured yet.
var ErrNoSnapshot = errors.New("no snapshot captured yet")

// SnapshotStore persists the most recent snapshot. Every Save overwrites the
// previous one. Implementations must be safe for concurrent use.
type SnapshotStore interface {
	Save(ctx context.Context, snap *model.Snapshot) error
	Latest(ctx context.Context) (*model.Snapshot, error)
	Close() error
}

type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

type Config struct {
	Driver Driver `yaml:"driver"`
	// Path is the SQLite database file; ignored by the memory driver.
	Path string `yaml:"path"`
}

// New builds the store selected by cfg.Driver. An empty driver means sqlite.
func New(cfg Config, logger logging.Logger) (SnapshotStore, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case DriverSQLite, "":
		return NewSQLiteStore(cfg.Path, logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
