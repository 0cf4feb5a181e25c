package aggregate

import (
	"testing"
	"time"

	"stargazer/internal/model"
)

func ev(repo string, day string, hour int) model.StarEvent {
	d, _ := time.Parse("2006-01-02", day)
	return model.StarEvent{Repo: repo, StarredAt: d.Add(time.Duration(hour) * time.Hour)}
}

func TestDailySeriesZeroFillsAndAccumulates(t *testing.T) {
	events := []model.StarEvent{
		ev("o/r", "2024-01-01", 9),
		ev("o/r", "2024-01-01", 17),
		ev("o/r", "2024-01-03", 3),
	}
	today, _ := time.Parse("2006-01-02", "2024-01-03")
	rows := BuildDailySeries(events, today)

	want := []model.DailyCount{
		{Repo: "o/r", Date: day("2024-01-01"), Stars: 2, Cumulative: 2},
		{Repo: "o/r", Date: day("2024-01-02"), Stars: 0, Cumulative: 2},
		{Repo: "o/r", Date: day("2024-01-03"), Stars: 1, Cumulative: 3},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %v", len(want), len(rows), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d: expected %+v, got %+v", i, want[i], rows[i])
		}
	}
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d.UTC()
}

func TestDailySeriesSingleEventDay(t *testing.T) {
	rows := BuildDailySeries([]model.StarEvent{ev("o/r", "2024-06-10", 12)}, day("2024-06-10"))
	if len(rows) != 1 {
		t.Fatalf("expected exactly one spine day, got %d", len(rows))
	}
	if rows[0].Stars != 1 || rows[0].Cumulative != 1 {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestDailySeriesExtendsToToday(t *testing.T) {
	rows := BuildDailySeries([]model.StarEvent{ev("o/r", "2024-01-01", 0)}, day("2024-01-05"))
	if len(rows) != 5 {
		t.Fatalf("expected spine through today, got %d rows", len(rows))
	}
	for i, r := range rows {
		if i > 0 && r.Stars != 0 {
			t.Fatalf("day %v should be zero-filled: %+v", r.Date, r)
		}
		if r.Cumulative != 1 {
			t.Fatalf("cumulative must hold flat, got %+v", r)
		}
	}
}

func TestDailySeriesMonotonicAndGapFree(t *testing.T) {
	events := []model.StarEvent{
		ev("o/r", "2024-02-01", 1), ev("o/r", "2024-02-07", 2), ev("o/r", "2024-02-07", 3),
		ev("x/y", "2024-02-05", 4),
	}
	rows := BuildDailySeries(events, day("2024-02-10"))

	perRepo := make(map[string][]model.DailyCount)
	for _, r := range rows {
		perRepo[r.Repo] = append(perRepo[r.Repo], r)
	}
	if len(perRepo["o/r"]) != 10 || len(perRepo["x/y"]) != 6 {
		t.Fatalf("spine lengths wrong: o/r=%d x/y=%d", len(perRepo["o/r"]), len(perRepo["x/y"]))
	}
	for repo, series := range perRepo {
		sum := 0
		for i, r := range series {
			if i > 0 {
				if got := r.Date.Sub(series[i-1].Date); got != 24*time.Hour {
					t.Fatalf("%s: gap in spine at %v", repo, r.Date)
				}
				if r.Cumulative < series[i-1].Cumulative {
					t.Fatalf("%s: cumulative decreased at %v", repo, r.Date)
				}
			}
			sum += r.Stars
			if r.Cumulative != sum {
				t.Fatalf("%s: cumulative != running sum at %v", repo, r.Date)
			}
		}
	}
}
