package ingestion

import (
	"context"
	"time"

	"github.com/tasman/usajobs-digest/internal/logger"
	"github.com/tasman/usajobs-digest/internal/models"
	"github.com/tasman/usajobs-digest/internal/storage"
)

// Fetcher is the external job source consumed by the ingestion service.
type Fetcher interface {
	Search(ctx context.Context, criteria models.SearchCriteria, since time.Time) ([]models.JobPosting, error)
}

// Service appends newly published postings to the store. It is the only
// stateful orchestration in the pipeline: the watermark bounds the fetch,
// and the store's dedupe-by-ID makes repeated runs idempotent.
type Service struct {
	criteria models.SearchCriteria
	fetcher  Fetcher
	store    storage.Store
}

// NewService creates a new ingestion service
func NewService(criteria models.SearchCriteria, fetcher Fetcher, store storage.Store) *Service {
	return &Service{
		criteria: criteria,
		fetcher:  fetcher,
		store:    store,
	}
}

// Run performs one ingestion pass and returns the number of rows added.
//
// The watermark bound is inclusive, so postings published exactly on the
// watermark date are fetched again; the store's duplicate skip is what
// guarantees no duplicate rows. Running twice against an unchanged source
// inserts zero rows on the second pass.
func (s *Service) Run(ctx context.Context) (int, error) {
	if err := s.store.Init(ctx); err != nil {
		return 0, err
	}

	since, err := s.store.LatestPublicationDate(ctx)
	if err != nil {
		return 0, err
	}

	postings, err := s.fetcher.Search(ctx, s.criteria, since)
	if err != nil {
		return 0, err
	}

	inserted, err := s.store.InsertPostings(ctx, postings)
	if err != nil {
		return 0, err
	}

	logger.Log.Infow("ingestion complete",
		"fetched", len(postings),
		"inserted", inserted,
		"since", formatSince(since),
	)
	return inserted, nil
}

func formatSince(since time.Time) string {
	if since.IsZero() {
		return "beginning"
	}
	return since.Format("2006-01-02")
}
