package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// errors
var (
	ErrAlreadyRunning = errors.New("a crawl is already running")
)

// Crawler runs one crawl.
type Crawler interface {
	Crawl(ctx context.Context) (*CrawlResult, error)
}

// CrawlJob represents an active or finished crawl
type CrawlJob struct {
	ID         uuid.UUID    `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Result     *CrawlResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// CrawlManager runs crawls in the background, one at a time.
type CrawlManager struct {
	mu       sync.Mutex
	current  *CrawlJob
	last     *CrawlJob
	cancelFn context.CancelFunc
	crawler  Crawler
	onDone   func(*CrawlJob)
}

// NewCrawlManager creates a new crawl manager. onDone, when set, is called
// after every finished crawl.
func NewCrawlManager(crawler Crawler, onDone func(*CrawlJob)) *CrawlManager {
	return &CrawlManager{crawler: crawler, onDone: onDone}
}

// Start starts a crawl in the background.
// returns ErrAlreadyRunning if one is already running
func (m *CrawlManager) Start() (*CrawlJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// detached from the request that triggered it
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	job := &CrawlJob{
		ID:        uuid.New(),
		StartedAt: time.Now(),
	}
	m.current = job

	go m.run(ctx, job)

	snapshot := *job
	return &snapshot, nil
}

// Stop cancels the running crawl. Safe to call when nothing runs.
func (m *CrawlManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
}

// Current returns the running crawl or nil.
func (m *CrawlManager) Current() *CrawlJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	job := *m.current
	return &job
}

// Last returns the most recently finished crawl or nil.
func (m *CrawlManager) Last() *CrawlJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	job := *m.last
	return &job
}

func (m *CrawlManager) run(ctx context.Context, job *CrawlJob) {
	result, err := m.crawler.Crawl(ctx)

	finished := time.Now()
	done := &CrawlJob{
		ID:         job.ID,
		StartedAt:  job.StartedAt,
		FinishedAt: &finished,
		Result:     result,
	}
	if err != nil {
		done.Error = err.Error()
	}

	m.mu.Lock()
	if m.current != nil && m.current.ID == job.ID {
		m.current = nil
		if m.cancelFn != nil {
			m.cancelFn()
			m.cancelFn = nil
		}
	}
	m.last = done
	m.mu.Unlock()

	if m.onDone != nil {
		m.onDone(done)
	}
}
