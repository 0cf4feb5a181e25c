package aggregate

import (
	"sort"
	"time"

	"stargazer/internal/model"
)

// BuildDailySeries turns sparse star events into a complete per-repo daily
// series: one row for every calendar day from the repo's first event through
// today, days without events zero-filled, and a running cumulative count.
// The cumulative series is a step function, held flat across empty days,
// never interpolated.
func BuildDailySeries(events []model.StarEvent, today time.Time) []model.DailyCount {
	today = Day(today)

	perDay := make(map[string]map[time.Time]int)
	first := make(map[string]time.Time)
	for _, e := range events {
		d := Day(e.StarredAt)
		m, ok := perDay[e.Repo]
		if !ok {
			m = make(map[time.Time]int)
			perDay[e.Repo] = m
			first[e.Repo] = d
		}
		m[d]++
		if d.Before(first[e.Repo]) {
			first[e.Repo] = d
		}
	}

	repos := make([]string, 0, len(perDay))
	for r := range perDay {
		repos = append(repos, r)
	}
	sort.Strings(repos)

	var out []model.DailyCount
	for _, repo := range repos {
		cum := 0
		for d := first[repo]; !d.After(today); d = d.AddDate(0, 0, 1) {
			n := perDay[repo][d]
			cum += n
			out = append(out, model.DailyCount{Repo: repo, Date: d, Stars: n, Cumulative: cum})
		}
	}
	return out
}
