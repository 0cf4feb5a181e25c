package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stargazer/internal/ghclient"
	"stargazer/internal/logging"
	"stargazer/internal/metrics"
	"stargazer/internal/model"
	"stargazer/internal/tokens"
)

// Job tracks one repo's extraction while it runs. Jobs are created per run
// and discarded after load; nothing here is persisted.
type Job struct {
	Repo           string
	Credential     string
	PagesFetched   int
	RecordsFetched int
}

// Runner drives the paginated client across all pages for one repo.
type Runner struct {
	client   ghclient.Client
	pool     *tokens.Pool
	perPage  int
	maxPages int

	// sleep is context-aware and injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewRunner(client ghclient.Client, pool *tokens.Pool, perPage, maxPages int) *Runner {
	return &Runner{
		client:   client,
		pool:     pool,
		perPage:  perPage,
		maxPages: maxPages,
		sleep:    sleepCtx,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run extracts every stargazer of repo, in page order, and returns the full
// accumulated set. Rate limits pause the job until reset; any other failure
// aborts it and nothing is returned, so a partial set never reaches the
// loader. Jobs for different repos share nothing but the token pool.
func (r *Runner) Run(ctx context.Context, repo string) ([]model.StarEvent, Job, error) {
	job := Job{Repo: repo}
	cred, err := r.acquire(ctx, repo)
	if err != nil {
		return nil, job, err
	}
	defer r.pool.Release(cred)
	job.Credential = cred.Label()

	maxRecords := r.maxPages * r.perPage
	var out []model.StarEvent
	for page := 1; page <= r.maxPages; page++ {
		p, err := r.fetchPage(ctx, repo, cred, page)
		if err != nil {
			return nil, job, fmt.Errorf("extract %s page %d: %w", repo, page, err)
		}
		cred.Observe(p.Quota)
		job.PagesFetched++
		job.RecordsFetched += len(p.Records)
		metrics.PagesFetched.WithLabelValues(repo).Inc()
		metrics.RecordsFetched.WithLabelValues(repo).Add(float64(len(p.Records)))
		out = append(out, p.Records...)
		if len(out) >= maxRecords {
			out = out[:maxRecords]
			if p.HasMore {
				logging.Warn("extract_truncated", map[string]any{"repo": repo, "records": maxRecords})
			}
			break
		}
		if !p.HasMore {
			break
		}
	}
	logging.Info("extract_done", map[string]any{
		"repo": repo, "pages": job.PagesFetched, "records": len(out), "credential": job.Credential,
	})
	return out, job, nil
}

// fetchPage retries the same page across rate-limit pauses. Page N+1 is never
// requested before page N resolves.
func (r *Runner) fetchPage(ctx context.Context, repo string, cred *tokens.Credential, page int) (ghclient.Page, error) {
	for {
		p, err := r.client.FetchPage(ctx, repo, cred, page)
		if err == nil {
			return p, nil
		}
		var rl *ghclient.RateLimitError
		if !errors.As(err, &rl) {
			return ghclient.Page{}, err
		}
		metrics.RateLimitWaits.Inc()
		wait := rl.Reset.Sub(r.now()) + 5*time.Second
		logging.Warn("rate_limited", map[string]any{"repo": repo, "page": page, "wait": wait.Round(time.Second).String()})
		if err := r.sleep(ctx, wait); err != nil {
			return ghclient.Page{}, err
		}
	}
}

// acquire waits out an exhausted credential's reset window instead of failing
// the job; a busy dedicated credential is a caller bug and surfaces as-is.
func (r *Runner) acquire(ctx context.Context, repo string) (*tokens.Credential, error) {
	for {
		cred, err := r.pool.Acquire(repo)
		if err == nil {
			return cred, nil
		}
		var ex *tokens.ExhaustedError
		if !errors.As(err, &ex) {
			return nil, err
		}
		metrics.RateLimitWaits.Inc()
		logging.Warn("credential_exhausted", map[string]any{"repo": repo, "until": ex.Reset.UTC().Format(time.RFC3339)})
		if err := r.sleep(ctx, ex.Reset.Sub(r.now())+time.Second); err != nil {
			return nil, err
		}
	}
}
