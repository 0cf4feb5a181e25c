package aggregate

import (
	"sort"
	"time"

	"stargazer/internal/model"
)

// RepoTotals counts stored events per repo, ordered by count descending.
func RepoTotals(events []model.StarEvent) []model.RepoTotal {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Repo]++
	}
	out := make([]model.RepoTotal, 0, len(counts))
	for repo, n := range counts {
		out = append(out, model.RepoTotal{Repo: repo, Stars: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stars != out[j].Stars {
			return out[i].Stars > out[j].Stars
		}
		return out[i].Repo < out[j].Repo
	})
	return out
}

// UserSummaries groups events by actor: distinct repo count, repo list
// ordered by first occurrence, event-time span, and the mean gap in days
// between consecutive events. An actor with one event has a nil gap.
func UserSummaries(events []model.StarEvent) []model.UserSummary {
	byActor := make(map[int64][]model.StarEvent)
	for _, e := range events {
		byActor[e.ActorID] = append(byActor[e.ActorID], e)
	}

	out := make([]model.UserSummary, 0, len(byActor))
	for id, evs := range byActor {
		sort.Slice(evs, func(i, j int) bool { return evs[i].StarredAt.Before(evs[j].StarredAt) })

		var repos []string
		seen := make(map[string]bool)
		for _, e := range evs {
			if !seen[e.Repo] {
				seen[e.Repo] = true
				repos = append(repos, e.Repo)
			}
		}

		s := model.UserSummary{
			ActorID:    id,
			ActorLogin: evs[len(evs)-1].ActorLogin,
			RepoCount:  len(repos),
			Repos:      repos,
			FirstAt:    evs[0].StarredAt,
			LastAt:     evs[len(evs)-1].StarredAt,
		}
		if len(evs) >= 2 {
			var total time.Duration
			for i := 1; i < len(evs); i++ {
				total += evs[i].StarredAt.Sub(evs[i-1].StarredAt)
			}
			gap := total.Hours() / 24 / float64(len(evs)-1)
			s.AvgGapDays = &gap
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RepoCount != out[j].RepoCount {
			return out[i].RepoCount > out[j].RepoCount
		}
		return out[i].ActorLogin < out[j].ActorLogin
	})
	return out
}

// OverlapHistogram buckets actors by how many tracked repos they starred.
func OverlapHistogram(summaries []model.UserSummary) []model.OverlapBucket {
	counts := make(map[int]int)
	for _, s := range summaries {
		counts[s.RepoCount]++
	}
	out := make([]model.OverlapBucket, 0, len(counts))
	for n, actors := range counts {
		out = append(out, model.OverlapBucket{RepoCount: n, Actors: actors})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepoCount < out[j].RepoCount })
	return out
}
