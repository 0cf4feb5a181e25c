package model

import (
	"errors"
	"strings"
	"time"
)

// StarEvent is one "user starred repo at time" fact as extracted from the API.
type StarEvent struct {
	ActorLogin  string
	ActorID     int64
	Repo        string // owner/name
	StarredAt   time.Time
	AvatarURL   string
	ProfileURL  string
	ExtractedAt time.Time
}

// DailyCount is one row of a repo's gap-free daily series.
type DailyCount struct {
	Repo       string
	Date       time.Time // midnight UTC
	Stars      int
	Cumulative int
}

// RepoTotal is the stored star count for one repo.
type RepoTotal struct {
	Repo  string
	Stars int
}

// UserSummary describes one actor's activity across all tracked repos.
// AvgGapDays is nil when the actor has fewer than two events.
type UserSummary struct {
	ActorID    int64
	ActorLogin string
	RepoCount  int
	Repos      []string // ordered by first occurrence
	FirstAt    time.Time
	LastAt     time.Time
	AvgGapDays *float64
}

// OverlapBucket counts actors that starred exactly RepoCount tracked repos.
type OverlapBucket struct {
	RepoCount int
	Actors    int
}

// CalendarDay is one row of the calendar dimension.
type CalendarDay struct {
	Date         time.Time
	Year         int
	Quarter      int
	Month        int
	WeekOfYear   int
	DayOfWeek    int // 0=Sunday, matching time.Weekday
	DayName      string
	IsWeekend    bool
	IsWeekday    bool
	MonthStart   time.Time
	QuarterStart time.Time
}

var errBadRepo = errors.New("repo must be in owner/name form")

// SplitRepo splits an owner/name identifier.
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", errBadRepo
	}
	return owner, name, nil
}
