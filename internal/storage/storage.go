package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// Entry is a single key with its value.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a byte-oriented key-value substrate. Keys are slash separated
// ("jobs/<id>") and List returns entries ordered by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver string `mapstructure:"driver"`
	// Path is the database file for the sqlite driver.
	Path string `mapstructure:"path"`
	// URL is the connection string for postgres, redis and mongo.
	URL string `mapstructure:"url"`
	// Database and Collection are used by the mongo driver.
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	// Namespace prefixes every key in redis.
	Namespace string `mapstructure:"namespace"`
}

// Open builds the driver named in cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, errors.New("storage: sqlite driver requires a path")
		}
		return OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		if cfg.URL == "" {
			return nil, errors.New("storage: postgres driver requires a url")
		}
		return OpenPostgres(ctx, cfg.URL)
	case DriverRedis:
		if cfg.URL == "" {
			return nil, errors.New("storage: redis driver requires a url")
		}
		return OpenRedis(ctx, cfg.URL, cfg.Namespace)
	case DriverMongo:
		if cfg.URL == "" {
			return nil, errors.New("storage: mongo driver requires a url")
		}
		return OpenMongo(ctx, cfg.URL, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}
