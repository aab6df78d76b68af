package linkmeta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gorm.io/datatypes"

	"commune_backend/internal/logger"
	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
)

// PoolConfig bounds the worker pool and the retry schedule. Retry state is
// written back to the job row, never held in worker memory.
type PoolConfig struct {
	Workers      int
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// Pool pulls pending metadata jobs and runs them through the provider table.
// Its concurrency is independent of request handling, so a burst of slow
// external fetches cannot starve post or comment creation.
type Pool struct {
	jobs      repositories.MetadataJobRepository
	links     repositories.LinkRepository
	posts     repositories.PostRepository
	publisher *realtime.Publisher
	providers []Provider
	client    *http.Client
	cfg       PoolConfig
}

func NewPool(
	jobs repositories.MetadataJobRepository,
	links repositories.LinkRepository,
	posts repositories.PostRepository,
	publisher *realtime.Publisher,
	cfg PoolConfig,
) *Pool {
	return &Pool{
		jobs:      jobs,
		links:     links,
		posts:     posts,
		publisher: publisher,
		providers: DefaultProviders(),
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		cfg:       cfg,
	}
}

// Start launches the workers and blocks until ctx is cancelled and all
// workers have drained.
func (p *Pool) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(ctx, worker)
		}(i)
	}
	wg.Wait()
	logger.Info("Metadata worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.jobs.ClaimNext()
		if err != nil {
			logger.Error("Failed to claim metadata job", "worker", worker, "error", err)
			p.sleep(ctx)
			continue
		}
		if job == nil {
			p.sleep(ctx)
			continue
		}

		p.process(ctx, job)
	}
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.PollInterval):
	}
}

func (p *Pool) process(ctx context.Context, job *models.MetadataJob) {
	link, err := p.links.FindByID(job.LinkID)
	if err != nil {
		if errors.Is(err, repositories.ErrLinkNotFound) {
			// The link was deleted before the worker got here; the job fails
			// harmlessly.
			p.finishFailed(job, "link no longer exists")
			return
		}
		p.retryOrFail(job, err)
		return
	}

	parsed, err := url.Parse(link.URL)
	if err != nil {
		p.finishFailed(job, "unparseable URL: "+err.Error())
		return
	}

	provider, err := SelectProvider(p.providers, job.ProviderHint, parsed)
	if err != nil {
		p.finishFailed(job, err.Error())
		return
	}

	fetchCtx := ctx
	if provider.RequiresFetch() {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}

	meta, err := provider.Extract(fetchCtx, p.client, parsed)
	if err != nil {
		// Upstream blocking and transient network faults land here alike:
		// the remediation (retry, then give up) is identical.
		p.retryOrFail(job, err)
		return
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		p.retryOrFail(job, err)
		return
	}

	if err := p.links.SetMetadata(link.ID, datatypes.JSON(raw)); err != nil {
		if errors.Is(err, repositories.ErrLinkNotFound) {
			p.finishFailed(job, "link deleted during fetch")
			return
		}
		p.retryOrFail(job, err)
		return
	}

	if err := p.jobs.MarkDone(job.ID); err != nil {
		logger.Error("Failed to mark metadata job done", "job_id", job.ID, "error", err)
	}
	logger.WorkerLog("link_meta", "extract "+provider.Name(), nil)

	p.publishUpdate(ctx, link, raw)
}

// publishUpdate pushes the enrichment to live clients through the same bus
// path as every other event, scoped to the owning post's channel.
func (p *Pool) publishUpdate(ctx context.Context, link *models.Link, metadata []byte) {
	postID, err := p.resolvePostID(link)
	if err != nil {
		logger.Warn("Cannot resolve post for link metadata event", "link_id", link.ID, "error", err)
		return
	}

	p.publisher.Publish(ctx, realtime.PostChannel(postID), realtime.EventLinkMetadataUpdated, realtime.LinkMetadataPayload{
		PostID:   postID,
		LinkID:   link.ID,
		Metadata: metadata,
	})
}

func (p *Pool) resolvePostID(link *models.Link) (string, error) {
	if link.PostID != nil {
		return *link.PostID, nil
	}
	if link.CommentID != nil {
		comment, err := p.posts.FindCommentByID(*link.CommentID)
		if err != nil {
			return "", err
		}
		return comment.PostID, nil
	}
	return "", errors.New("link belongs to neither post nor comment")
}

// retryOrFail schedules another attempt with capped exponential backoff, or
// marks the job failed once the attempt cap is reached. A failed job is
// terminal; the link simply renders as a bare URL.
func (p *Pool) retryOrFail(job *models.MetadataJob, cause error) {
	attempt := job.Attempt + 1
	if attempt >= p.cfg.MaxAttempts {
		p.finishFailed(job, cause.Error())
		return
	}

	backoff := p.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 4
		if backoff >= p.cfg.BackoffCap {
			backoff = p.cfg.BackoffCap
			break
		}
	}

	if err := p.jobs.MarkRetry(job.ID, attempt, time.Now().Add(backoff), cause.Error()); err != nil {
		logger.Error("Failed to schedule metadata job retry", "job_id", job.ID, "error", err)
		return
	}
	logger.Warn("Metadata job attempt failed, retrying",
		"job_id", job.ID,
		"url", job.URL,
		"attempt", attempt,
		"next_in", backoff.String(),
		"error", cause,
	)
}

func (p *Pool) finishFailed(job *models.MetadataJob, cause string) {
	if err := p.jobs.MarkFailed(job.ID, cause); err != nil {
		logger.Error("Failed to mark metadata job failed", "job_id", job.ID, "error", err)
		return
	}
	logger.WorkerLog("link_meta", "extract "+job.URL, errors.New(cause))
}
