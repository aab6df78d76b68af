package linkmeta

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type captureBus struct {
	mu        sync.Mutex
	published []capturedPublish
}

type capturedPublish struct {
	channel string
	event   realtime.Event
}

func (b *captureBus) Publish(_ context.Context, channel string, event realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, capturedPublish{channel: channel, event: event})
	return nil
}

func (b *captureBus) Subscribe(context.Context, realtime.Handler, ...string) error { return nil }
func (b *captureBus) Close() error                                                 { return nil }

type retryCall struct {
	jobID     string
	attempt   int
	nextAt    time.Time
	lastError string
}

type fakeJobRepo struct {
	mu      sync.Mutex
	queue   []*models.MetadataJob
	done    []string
	failed  map[string]string
	retries []retryCall
}

func newFakeJobRepo(jobs ...*models.MetadataJob) *fakeJobRepo {
	return &fakeJobRepo{queue: jobs, failed: make(map[string]string)}
}

func (r *fakeJobRepo) EnqueueIfAbsent(job *models.MetadataJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, job)
	return nil
}

func (r *fakeJobRepo) ClaimNext() (*models.MetadataJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, nil
	}
	job := r.queue[0]
	r.queue = r.queue[1:]
	job.Status = models.JobStatusInProgress
	return job, nil
}

func (r *fakeJobRepo) MarkDone(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, jobID)
	return nil
}

func (r *fakeJobRepo) MarkRetry(jobID string, attempt int, nextAttemptAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, retryCall{jobID: jobID, attempt: attempt, nextAt: nextAttemptAt, lastError: lastError})
	return nil
}

func (r *fakeJobRepo) MarkFailed(jobID string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[jobID] = lastError
	return nil
}

func (r *fakeJobRepo) FindByLinkID(string) (*models.MetadataJob, error) {
	return nil, repositories.ErrJobNotFound
}

type fakeLinkRepo struct {
	mu       sync.Mutex
	links    map[string]*models.Link
	metadata map[string]datatypes.JSON
}

func newFakeLinkRepo(links ...*models.Link) *fakeLinkRepo {
	repo := &fakeLinkRepo{links: make(map[string]*models.Link), metadata: make(map[string]datatypes.JSON)}
	for _, link := range links {
		repo.links[link.ID] = link
	}
	return repo
}

func (r *fakeLinkRepo) Create(link *models.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[link.ID] = link
	return nil
}

func (r *fakeLinkRepo) FindByID(id string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[id]
	if !ok {
		return nil, repositories.ErrLinkNotFound
	}
	return link, nil
}

func (r *fakeLinkRepo) FindCachedMetadata(string) (datatypes.JSON, error) { return nil, nil }

func (r *fakeLinkRepo) SetMetadata(id string, metadata datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[id]; !ok {
		return repositories.ErrLinkNotFound
	}
	r.metadata[id] = metadata
	return nil
}

// fakeCommentLookup satisfies the post repository; only comment lookup is
// exercised by the worker.
type fakeCommentLookup struct {
	comments map[string]*models.Comment
}

func (r *fakeCommentLookup) Create(*models.Post) error                          { return nil }
func (r *fakeCommentLookup) FindByID(string) (*models.Post, error)              { return nil, repositories.ErrPostNotFound }
func (r *fakeCommentLookup) ListBySection(string, int, int) ([]models.Post, error) { return nil, nil }
func (r *fakeCommentLookup) Delete(string) error                                { return nil }
func (r *fakeCommentLookup) CreateComment(*models.Comment) error                { return nil }
func (r *fakeCommentLookup) ListComments(string) ([]models.Comment, error)      { return nil, nil }
func (r *fakeCommentLookup) CommenterIDs(string) ([]string, error)              { return nil, nil }
func (r *fakeCommentLookup) DeleteComment(string) error                         { return nil }
func (r *fakeCommentLookup) CreateReaction(*models.Reaction) error              { return nil }
func (r *fakeCommentLookup) DeleteReaction(string, *string, string, string) error { return nil }

func (r *fakeCommentLookup) FindCommentByID(id string) (*models.Comment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return nil, repositories.ErrCommentNotFound
	}
	return comment, nil
}

// stubProvider matches everything and returns canned results, keeping retry
// tests off the network.
type stubProvider struct {
	name string
	meta *Metadata
	err  error
}

func (p *stubProvider) Name() string            { return p.name }
func (p *stubProvider) CanHandle(*url.URL) bool { return true }
func (p *stubProvider) RequiresFetch() bool     { return false }

func (p *stubProvider) Extract(context.Context, *http.Client, *url.URL) (*Metadata, error) {
	return p.meta, p.err
}

// ---------------------------------------------------------------------------

func testPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      1,
		MaxAttempts:  3,
		BackoffBase:  30 * time.Second,
		BackoffCap:   30 * time.Minute,
		PollInterval: 10 * time.Millisecond,
		FetchTimeout: time.Second,
	}
}

func strPtr(s string) *string { return &s }

func TestProcessSuccessPublishesExactlyOneUpdate(t *testing.T) {
	t.Parallel()

	bus := &captureBus{}
	links := newFakeLinkRepo(&models.Link{
		BaseModel: models.BaseModel{ID: "l1"},
		PostID:    strPtr("p1"),
		URL:       "https://cdn.example.com/cover.jpg",
	})
	jobs := newFakeJobRepo()
	pool := NewPool(jobs, links, &fakeCommentLookup{}, realtime.NewPublisher(bus), testPoolConfig())

	pool.process(context.Background(), &models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "l1",
		URL:       "https://cdn.example.com/cover.jpg",
	})

	require.Len(t, jobs.done, 1)
	assert.Empty(t, jobs.retries)
	assert.Empty(t, jobs.failed)
	assert.NotEmpty(t, links.metadata["l1"])

	require.Len(t, bus.published, 1)
	assert.Equal(t, realtime.PostChannel("p1"), bus.published[0].channel)
	assert.Equal(t, realtime.EventLinkMetadataUpdated, bus.published[0].event.Type)
}

func TestProcessCommentLinkPublishesToOwningPost(t *testing.T) {
	t.Parallel()

	bus := &captureBus{}
	links := newFakeLinkRepo(&models.Link{
		BaseModel: models.BaseModel{ID: "l1"},
		CommentID: strPtr("c1"),
		URL:       "https://cdn.example.com/cover.png",
	})
	posts := &fakeCommentLookup{comments: map[string]*models.Comment{
		"c1": {BaseModel: models.BaseModel{ID: "c1"}, PostID: "p9"},
	}}
	jobs := newFakeJobRepo()
	pool := NewPool(jobs, links, posts, realtime.NewPublisher(bus), testPoolConfig())

	pool.process(context.Background(), &models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "l1",
		URL:       "https://cdn.example.com/cover.png",
	})

	require.Len(t, bus.published, 1)
	assert.Equal(t, realtime.PostChannel("p9"), bus.published[0].channel)
}

func TestProcessExtractionFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	bus := &captureBus{}
	links := newFakeLinkRepo(&models.Link{
		BaseModel: models.BaseModel{ID: "l1"},
		PostID:    strPtr("p1"),
		URL:       "https://example.com/article",
	})
	jobs := newFakeJobRepo()
	pool := NewPool(jobs, links, &fakeCommentLookup{}, realtime.NewPublisher(bus), testPoolConfig())
	pool.providers = []Provider{&stubProvider{name: "stub", err: errors.New("upstream 503")}}

	before := time.Now()
	pool.process(context.Background(), &models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "l1",
		URL:       "https://example.com/article",
		Attempt:   0,
	})

	require.Len(t, jobs.retries, 1)
	call := jobs.retries[0]
	assert.Equal(t, 1, call.attempt)
	assert.Contains(t, call.lastError, "upstream 503")

	delay := call.nextAt.Sub(before)
	assert.GreaterOrEqual(t, delay, 29*time.Second)
	assert.LessOrEqual(t, delay, 31*time.Second)

	assert.Empty(t, jobs.done)
	assert.Empty(t, bus.published, "no event until metadata actually lands")
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	cfg := testPoolConfig()
	cfg.MaxAttempts = 10
	cfg.BackoffCap = 3 * time.Minute
	jobs := newFakeJobRepo()
	pool := NewPool(jobs, newFakeLinkRepo(), &fakeCommentLookup{}, realtime.NewPublisher(&captureBus{}), cfg)

	for attempt := 0; attempt < 4; attempt++ {
		pool.retryOrFail(&models.MetadataJob{
			BaseModel: models.BaseModel{ID: "j1"},
			Attempt:   attempt,
		}, errors.New("transient"))
	}

	require.Len(t, jobs.retries, 4)
	expected := []time.Duration{30 * time.Second, 2 * time.Minute, 3 * time.Minute, 3 * time.Minute}
	for i, call := range jobs.retries {
		delay := time.Until(call.nextAt)
		assert.InDelta(t, expected[i].Seconds(), delay.Seconds(), 2, "attempt %d", call.attempt)
	}
}

func TestProcessAttemptCapMarksJobFailed(t *testing.T) {
	t.Parallel()

	bus := &captureBus{}
	links := newFakeLinkRepo(&models.Link{
		BaseModel: models.BaseModel{ID: "l1"},
		PostID:    strPtr("p1"),
		URL:       "https://example.com/article",
	})
	jobs := newFakeJobRepo()
	pool := NewPool(jobs, links, &fakeCommentLookup{}, realtime.NewPublisher(bus), testPoolConfig())
	pool.providers = []Provider{&stubProvider{name: "stub", err: errors.New("still down")}}

	pool.process(context.Background(), &models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "l1",
		URL:       "https://example.com/article",
		Attempt:   2, // final attempt
	})

	assert.Empty(t, jobs.retries)
	assert.Contains(t, jobs.failed["j1"], "still down")
	assert.Empty(t, bus.published)
}

func TestProcessDeletedLinkFailsTerminally(t *testing.T) {
	t.Parallel()

	bus := &captureBus{}
	jobs := newFakeJobRepo()
	pool := NewPool(jobs, newFakeLinkRepo(), &fakeCommentLookup{}, realtime.NewPublisher(bus), testPoolConfig())

	pool.process(context.Background(), &models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "gone",
		URL:       "https://example.com/x",
	})

	assert.Empty(t, jobs.retries, "a deleted link is not a transient fault")
	assert.Contains(t, jobs.failed["j1"], "link no longer exists")
	assert.Empty(t, bus.published)
}

func TestProcessUnhandledSchemeFailsTerminally(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobRepo()
	links := newFakeLinkRepo(&models.Link{
		BaseModel: models.BaseModel{ID: "l1"},
		PostID:    strPtr("p1"),
		URL:       "ftp://example.com/file",
	})
	pool := NewPool(jobs, links, &fakeCommentLookup{}, realtime.NewPublisher(&captureBus{}), testPoolConfig())

	pool.process(context.Background(), &models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "l1",
		URL:       "ftp://example.com/file",
	})

	assert.Contains(t, jobs.failed["j1"], "no provider")
	assert.Empty(t, jobs.retries)
}

func TestStartDrainsQueueAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	bus := &captureBus{}
	links := newFakeLinkRepo(&models.Link{
		BaseModel: models.BaseModel{ID: "l1"},
		PostID:    strPtr("p1"),
		URL:       "https://cdn.example.com/a.gif",
	})
	jobs := newFakeJobRepo(&models.MetadataJob{
		BaseModel: models.BaseModel{ID: "j1"},
		LinkID:    "l1",
		URL:       "https://cdn.example.com/a.gif",
	})

	cfg := testPoolConfig()
	cfg.Workers = 2
	pool := NewPool(jobs, links, &fakeCommentLookup{}, realtime.NewPublisher(bus), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(stopped)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		jobs.mu.Lock()
		done := len(jobs.done)
		jobs.mu.Unlock()
		if done == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop after cancel")
	}

	require.Len(t, jobs.done, 1)
	require.Len(t, bus.published, 1)
	assert.Equal(t, realtime.EventLinkMetadataUpdated, bus.published[0].event.Type)
}
