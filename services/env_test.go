package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"competitor-watch/config"
	"competitor-watch/dates"
	"competitor-watch/models"
	"competitor-watch/providers"
	"competitor-watch/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	DB     *gorm.DB
	Store  *Store
	RawDir string
	clock  *fakeClock
}

// newTestEnv öffnet eine frische SQLite-Datei pro Test.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	raw := filepath.Join(dir, "raw")
	clock := &fakeClock{now: time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)}
	store := NewStore(db, &storage.DiskArchive{Root: raw}, zap.NewNop())
	store.Now = clock.Now
	return &testEnv{DB: db, Store: store, RawDir: raw, clock: clock}
}

// fakeClock liefert bei jedem Aufruf eine Sekunde später, damit Snapshot-IDs eindeutig sind.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (e *testEnv) ingestService(pubmed, trials providers.Provider, queue SummaryQueue) *IngestService {
	cfg := &config.Config{PubMedWindowDays: 30, SummaryLimit: 100}
	svc := NewIngestService(cfg, e.Store, pubmed, trials, queue, zap.NewNop())
	svc.Now = func() time.Time { return time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC) }
	return svc
}

func (e *testEnv) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	q := e.DB.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// fakeProvider liefert feste Datensätze und wendet das Fenster wie die echten Adapter an.
type fakeProvider struct {
	name    string
	records []*providers.Record
	err     error

	mu      sync.Mutex
	queries []providers.Query
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(_ context.Context, q providers.Query) (*providers.Result, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	kept, dropped, undated := providers.FilterWindow(p.records, q.Window)
	return &providers.Result{Records: kept, Fetched: len(p.records), FilteredOut: dropped, KeptUndated: undated}, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []SummaryTask
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task SummaryTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func pubmedRecord(pmid, published, epub string, affiliations ...string) *providers.Record {
	return &providers.Record{
		Source:           models.SourcePubMed,
		NativeID:         pmid,
		Title:            "Paper " + pmid,
		URL:              "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
		PublishedDate:    dates.Parse(published),
		EpubDate:         dates.Parse(epub),
		PublicationTypes: []string{"Journal Article"},
		Affiliations:     affiliations,
	}
}

func trialRecord(nct, firstPosted, sponsor string, collaborators ...string) *providers.Record {
	rec := &providers.Record{
		Source:        models.SourceCTGov,
		NativeID:      nct,
		Title:         "Trial " + nct,
		URL:           "https://clinicaltrials.gov/study/" + nct,
		FirstPosted:   dates.Parse(firstPosted),
		PublishedDate: dates.Parse(firstPosted),
		LeadSponsor:   sponsor,
		Collaborators: collaborators,
	}
	rec.Affiliations = append([]string{sponsor}, collaborators...)
	return rec
}
