package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/storage"
	"go.uber.org/zap"
)

// SchemaVersion is the layout version written under meta/schema.
const SchemaVersion = 1

const (
	schemaKey   = "meta/schema"
	jobPrefix   = "jobs/"
	userPrefix  = "users/"
	phonePrefix = "phones/"
)

// ErrSchemaTooNew is returned when the store was written by a newer release.
var ErrSchemaTooNew = errors.New("storage schema is newer than this binary supports")

type schemaRecord struct {
	Version int `json:"version"`
}

// Options tune a Repository. Zero values are fine.
type Options struct {
	// Origin is the service reference point distances are measured from.
	Origin *jobs.Coordinates
	Now    func() time.Time
	NewID  func() string
}

// Repository keeps jobs (with their applications) and users on top of a storage.Store.
// Every read-modify-write goes through mu.
type Repository struct {
	store  storage.Store
	logger *zap.Logger
	origin *jobs.Coordinates
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// Open checks the schema marker, writing it on a fresh store.
func Open(ctx context.Context, store storage.Store, logger *zap.Logger, opts Options) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Repository{
		store:  store,
		logger: logger,
		origin: opts.Origin,
		now:    opts.Now,
		newID:  opts.NewID,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.NewString() }
	}

	if err := r.checkSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) checkSchema(ctx context.Context) error {
	var rec schemaRecord
	err := r.load(ctx, schemaKey, &rec)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		r.logger.Info("initialising storage schema", zap.Int("version", SchemaVersion))
		return r.save(ctx, schemaKey, schemaRecord{Version: SchemaVersion})
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case rec.Version > SchemaVersion:
		return fmt.Errorf("%w: found %d, supported %d", ErrSchemaTooNew, rec.Version, SchemaVersion)
	}
	return nil
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}

func (r *Repository) load(ctx context.Context, key string, v any) error {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", key, jobs.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Put(ctx, key, raw)
}
