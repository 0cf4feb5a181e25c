package jobs

import (
	"context"
	"sync"
	"time"

	"stargazer/internal/aggregate"
	"stargazer/internal/extract"
	"stargazer/internal/logging"
	"stargazer/internal/metrics"
	"stargazer/internal/store/starstore"
	"stargazer/internal/transform"
)

// Outcome is one repo's extract+load result within a run.
type Outcome struct {
	Repo   string
	Job    extract.Job
	Loaded int
	Err    error
}

// Report collects per-repo outcomes. Partial failure is expected: a failed
// repo keeps its previous partition and does not block the others.
type Report struct {
	Outcomes []Outcome
}

// Failed returns the number of repos whose extract or load failed.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// RunExtractLoad extracts and full-refreshes every repo, fanning out one
// worker per repo (bounded by workers when > 0). Each worker accumulates
// into its own slice; the only shared state is the token pool and the store.
func RunExtractLoad(ctx context.Context, st *starstore.Store, runner *extract.Runner, repos []string, workers int) Report {
	if workers <= 0 || workers > len(repos) {
		workers = len(repos)
	}
	metrics.ExtractRuns.Inc()

	in := make(chan string)
	results := make(chan Outcome)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repo := range in {
				results <- refreshOne(ctx, st, runner, repo)
			}
		}()
	}
	go func() {
		for _, repo := range repos {
			in <- repo
		}
		close(in)
		wg.Wait()
		close(results)
	}()

	byRepo := make(map[string]Outcome, len(repos))
	for o := range results {
		byRepo[o.Repo] = o
	}
	report := Report{Outcomes: make([]Outcome, 0, len(repos))}
	for _, repo := range repos {
		report.Outcomes = append(report.Outcomes, byRepo[repo])
	}
	return report
}

func refreshOne(ctx context.Context, st *starstore.Store, runner *extract.Runner, repo string) Outcome {
	out := Outcome{Repo: repo}
	events, job, err := runner.Run(ctx, repo)
	out.Job = job
	if err != nil {
		metrics.ExtractErrors.WithLabelValues(repo).Inc()
		logging.Error("extract_failed", map[string]any{"repo": repo, "error": err.Error()})
		out.Err = err
		return out
	}
	// A cancelled run must not reach the loader with whatever it gathered.
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	if err := st.Replace(ctx, repo, events); err != nil {
		logging.Error("load_failed", map[string]any{"repo": repo, "error": err.Error()})
		out.Err = err
		return out
	}
	out.Loaded = len(events)
	metrics.LoadedRows.WithLabelValues(repo).Add(float64(len(events)))
	logging.Info("partition_refreshed", map[string]any{"repo": repo, "rows": len(events)})
	return out
}

// RunAggregates recomputes every aggregate mart from the stars base relation.
func RunAggregates(ctx context.Context, st *starstore.Store, now func() time.Time) error {
	events, err := st.LoadStars(ctx)
	if err != nil {
		return err
	}
	today := now().UTC()

	if err := st.SaveCalendar(ctx, aggregate.BuildCalendar(aggregate.CalendarEpoch, today)); err != nil {
		return err
	}
	if err := st.SaveDailySeries(ctx, aggregate.BuildDailySeries(events, today)); err != nil {
		return err
	}
	if err := st.SaveRepoTotals(ctx, aggregate.RepoTotals(events)); err != nil {
		return err
	}
	users := aggregate.UserSummaries(events)
	if err := st.SaveUserActivity(ctx, users); err != nil {
		return err
	}
	if err := st.SaveOverlap(ctx, aggregate.OverlapHistogram(users)); err != nil {
		return err
	}
	logging.Info("aggregates_rebuilt", map[string]any{"events": len(events), "actors": len(users)})
	return nil
}

// RunPipeline is the daily entry point the external scheduler calls:
// extract+load every repo, rebuild staging and marts, recompute aggregates.
// Aggregates are recomputed even when some repos failed; those keep their
// previous partitions. The report carries per-repo failures for the caller's
// exit status.
func RunPipeline(ctx context.Context, st *starstore.Store, runner *extract.Runner, repos []string, workers int, now func() time.Time) (Report, error) {
	start := time.Now()
	report := RunExtractLoad(ctx, st, runner, repos, workers)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	res, err := transform.Run(ctx, st)
	if err != nil {
		return report, err
	}
	logging.Info("transform_done", map[string]any{"raw": res.RawRows, "staged": res.Staged, "rejected": res.Rejected})
	if err := RunAggregates(ctx, st, now); err != nil {
		return report, err
	}
	metrics.ObserveRunDuration(start)
	return report, nil
}
