package storage

import (
	"context"
	"time"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/models"
)

// Store is the contract for the durable job-posting table. Implementations
// are append-only: postings are inserted once, keyed by ID, and never
// updated or deleted.
type Store interface {
	// Init ensures the posting table exists. Safe to call on every run.
	Init(ctx context.Context) error

	// LatestPublicationDate returns the maximum publication date among
	// stored rows, or the zero time when the store is empty. It never
	// fails due to absence of rows.
	LatestPublicationDate(ctx context.Context) (time.Time, error)

	// InsertPostings inserts rows, skipping any whose ID already exists,
	// and returns the number actually added.
	InsertPostings(ctx context.Context, postings []models.JobPosting) (int, error)

	// Query executes one of the fixed report templates.
	Query(ctx context.Context, tmpl Template) (models.ReportTable, error)

	Close() error
}

// NewStore creates a store instance based on configuration
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg)
	case "postgres":
		return NewPostgresStore(cfg)
	default:
		return nil, errs.Mark(errs.Newf("unsupported storage driver: %s", cfg.Driver), errs.ErrConfig)
	}
}
