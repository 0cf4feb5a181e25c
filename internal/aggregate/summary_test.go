package aggregate

import (
	"testing"
	"time"

	"stargazer/internal/model"
)

func actorEv(id int64, login, repo string, at time.Time) model.StarEvent {
	return model.StarEvent{ActorID: id, ActorLogin: login, Repo: repo, StarredAt: at}
}

func TestRepoTotalsMatchCumulativeLastDay(t *testing.T) {
	t0 := day("2024-01-01")
	events := []model.StarEvent{
		actorEv(1, "a", "o/r", t0),
		actorEv(2, "b", "o/r", t0.AddDate(0, 0, 2)),
		actorEv(3, "c", "x/y", t0),
	}
	totals := RepoTotals(events)
	series := BuildDailySeries(events, day("2024-01-03"))

	last := make(map[string]int)
	for _, r := range series {
		last[r.Repo] = r.Cumulative
	}
	for _, tot := range totals {
		if last[tot.Repo] != tot.Stars {
			t.Fatalf("%s: cumulative last day %d != total %d", tot.Repo, last[tot.Repo], tot.Stars)
		}
	}
	if totals[0].Repo != "o/r" || totals[0].Stars != 2 {
		t.Fatalf("totals not ordered by count: %+v", totals)
	}
}

func TestUserSummaryAvgGap(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []model.StarEvent{
		actorEv(7, "u", "b/b", t0.AddDate(0, 0, 5)), // out of order on purpose
		actorEv(7, "u", "a/a", t0),
	}
	sums := UserSummaries(events)
	if len(sums) != 1 {
		t.Fatalf("expected one actor, got %d", len(sums))
	}
	s := sums[0]
	if s.RepoCount != 2 {
		t.Fatalf("expected 2 repos, got %d", s.RepoCount)
	}
	if s.Repos[0] != "a/a" || s.Repos[1] != "b/b" {
		t.Fatalf("repos must be ordered by first occurrence: %v", s.Repos)
	}
	if s.AvgGapDays == nil || *s.AvgGapDays != 5.0 {
		t.Fatalf("expected avg gap 5.0, got %v", s.AvgGapDays)
	}
	if !s.FirstAt.Equal(t0) || !s.LastAt.Equal(t0.AddDate(0, 0, 5)) {
		t.Fatalf("span wrong: %v .. %v", s.FirstAt, s.LastAt)
	}
}

func TestUserSummarySingleEventHasNoGap(t *testing.T) {
	sums := UserSummaries([]model.StarEvent{actorEv(1, "u", "a/a", day("2024-01-01"))})
	if sums[0].AvgGapDays != nil {
		t.Fatalf("expected nil gap for single event, got %v", *sums[0].AvgGapDays)
	}
}

func TestOverlapHistogram(t *testing.T) {
	t0 := day("2024-01-01")
	events := []model.StarEvent{
		actorEv(1, "a", "r/1", t0), actorEv(1, "a", "r/2", t0.AddDate(0, 0, 1)),
		actorEv(2, "b", "r/1", t0),
		actorEv(3, "c", "r/2", t0),
		actorEv(4, "d", "r/1", t0), actorEv(4, "d", "r/2", t0), actorEv(4, "d", "r/3", t0),
	}
	hist := OverlapHistogram(UserSummaries(events))
	want := []model.OverlapBucket{{RepoCount: 1, Actors: 2}, {RepoCount: 2, Actors: 1}, {RepoCount: 3, Actors: 1}}
	if len(hist) != len(want) {
		t.Fatalf("expected %d buckets, got %v", len(want), hist)
	}
	for i := range want {
		if hist[i] != want[i] {
			t.Fatalf("bucket %d: expected %+v, got %+v", i, want[i], hist[i])
		}
	}
}

func TestSameActorAcrossReposIsNotADuplicate(t *testing.T) {
	t0 := day("2024-01-01")
	events := []model.StarEvent{
		actorEv(1, "a", "r/1", t0),
		actorEv(1, "a", "r/2", t0),
	}
	totals := RepoTotals(events)
	if len(totals) != 2 || totals[0].Stars != 1 || totals[1].Stars != 1 {
		t.Fatalf("cross-repo events collapsed: %+v", totals)
	}
}
