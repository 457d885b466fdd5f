package ingestion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/models"
	"github.com/tasman/usajobs-digest/internal/storage"
)

// MockStore is a mock implementation of the storage.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) LatestPublicationDate(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStore) InsertPostings(ctx context.Context, postings []models.JobPosting) (int, error) {
	args := m.Called(ctx, postings)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Query(ctx context.Context, tmpl storage.Template) (models.ReportTable, error) {
	args := m.Called(ctx, tmpl)
	return args.Get(0).(models.ReportTable), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// stubFetcher replays scripted batches and records the since bound it was
// called with.
type stubFetcher struct {
	batches [][]models.JobPosting
	calls   int
	sinces  []time.Time
	err     error
}

func (f *stubFetcher) Search(ctx context.Context, criteria models.SearchCriteria, since time.Time) ([]models.JobPosting, error) {
	f.sinces = append(f.sinces, since)
	if f.err != nil {
		return nil, f.err
	}
	batch := f.batches[f.calls]
	if f.calls < len(f.batches)-1 {
		f.calls++
	}
	return batch, nil
}

func posting(id string, date time.Time) models.JobPosting {
	return models.JobPosting{
		ID:              id,
		Title:           "data analyst",
		Organization:    "dept of energy",
		PublicationDate: date,
		SalaryInterval:  "Per Year",
		WhoMayApply:     "United States Citizens",
	}
}

var criteria = models.SearchCriteria{
	Titles:   []string{"Data Analyst"},
	Keywords: []string{"data"},
}

func TestService_Run(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []models.JobPosting{posting("A", day), posting("B", day)}

	store := new(MockStore)
	store.On("Init", mock.Anything).Return(nil)
	store.On("LatestPublicationDate", mock.Anything).Return(time.Time{}, nil)
	store.On("InsertPostings", mock.Anything, batch).Return(2, nil)

	fetcher := &stubFetcher{batches: [][]models.JobPosting{batch}}
	service := NewService(criteria, fetcher, store)

	inserted, err := service.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	store.AssertExpectations(t)
}

func TestService_Run_FetchError(t *testing.T) {
	store := new(MockStore)
	store.On("Init", mock.Anything).Return(nil)
	store.On("LatestPublicationDate", mock.Anything).Return(time.Time{}, nil)

	fetcher := &stubFetcher{err: assert.AnError}
	service := NewService(criteria, fetcher, store)

	_, err := service.Run(context.Background())
	require.Error(t, err)
	// Nothing may be written once the fetch has failed.
	store.AssertNotCalled(t, "InsertPostings", mock.Anything, mock.Anything)
}

func TestService_Run_WatermarkError(t *testing.T) {
	store := new(MockStore)
	store.On("Init", mock.Anything).Return(nil)
	store.On("LatestPublicationDate", mock.Anything).Return(time.Time{}, assert.AnError)

	fetcher := &stubFetcher{batches: [][]models.JobPosting{nil}}
	service := NewService(criteria, fetcher, store)

	_, err := service.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, fetcher.sinces)
}

func TestService_Run_InsertError(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []models.JobPosting{posting("A", day)}

	store := new(MockStore)
	store.On("Init", mock.Anything).Return(nil)
	store.On("LatestPublicationDate", mock.Anything).Return(time.Time{}, nil)
	store.On("InsertPostings", mock.Anything, batch).Return(0, assert.AnError)

	fetcher := &stubFetcher{batches: [][]models.JobPosting{batch}}
	service := NewService(criteria, fetcher, store)

	_, err := service.Run(context.Background())
	require.Error(t, err)
}

func TestService_Run_PassesWatermarkToFetcher(t *testing.T) {
	watermark := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	store := new(MockStore)
	store.On("Init", mock.Anything).Return(nil)
	store.On("LatestPublicationDate", mock.Anything).Return(watermark, nil)
	store.On("InsertPostings", mock.Anything, mock.Anything).Return(0, nil)

	fetcher := &stubFetcher{batches: [][]models.JobPosting{nil}}
	service := NewService(criteria, fetcher, store)

	_, err := service.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, fetcher.sinces, 1)
	assert.Equal(t, watermark, fetcher.sinces[0])
}

// TestService_Run_EndToEnd drives two ingestion runs against a real SQLite
// file: first run sees postings A and B, second run sees A again plus a new
// C. Only C lands the second time, and the watermark advances with each
// run.
func TestService_Run_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(config.StorageConfig{
		Path:      filepath.Join(t.TempDir(), "e2e.db"),
		TableName: "positions",
	})
	require.NoError(t, err)
	defer store.Close()

	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	fetcher := &stubFetcher{batches: [][]models.JobPosting{
		{posting("A", d1), posting("B", d2)},
		{posting("A", d1), posting("C", d3)},
	}}
	service := NewService(criteria, fetcher, store)

	inserted, err := service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.True(t, fetcher.sinces[0].IsZero())

	latest, err := store.LatestPublicationDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, d2, latest)

	inserted, err = service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, d2, fetcher.sinces[1])

	latest, err = store.LatestPublicationDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, d3, latest)

	table, err := store.Query(ctx, storage.OpeningsByOrganization)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "3", table.Rows[0][1])
}

// TestService_Run_Idempotent checks the core invariant: a second run
// against an unchanged external source inserts zero rows.
func TestService_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(config.StorageConfig{
		Path:      filepath.Join(t.TempDir(), "idem.db"),
		TableName: "positions",
	})
	require.NoError(t, err)
	defer store.Close()

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fixed := []models.JobPosting{posting("A", day), posting("B", day)}
	fetcher := &stubFetcher{batches: [][]models.JobPosting{fixed}}
	service := NewService(criteria, fetcher, store)

	inserted, err := service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}
