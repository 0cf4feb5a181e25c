package starstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"stargazer/internal/model"
)

// The aggregate marts are what the dashboard reads. Each writer drops and
// recreates its table inside one transaction, same as the transform layer,
// so a reader sees the previous run's mart or this run's, never a partial.

const dateFmt = "2006-01-02"

func (s *Store) rebuild(ctx context.Context, drop, create string, insert func(tx *sql.Tx) error) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}
	if err := insert(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveCalendar writes the calendar_days dimension.
func (s *Store) SaveCalendar(ctx context.Context, days []model.CalendarDay) error {
	return s.rebuild(ctx,
		`DROP TABLE IF EXISTS calendar_days`,
		`CREATE TABLE calendar_days (
		  date TEXT PRIMARY KEY, year INTEGER, quarter INTEGER, month INTEGER,
		  week_of_year INTEGER, day_of_week INTEGER, day_name TEXT,
		  is_weekend INTEGER, is_weekday INTEGER,
		  period_start_month TEXT, period_start_quarter TEXT
		)`,
		func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO calendar_days VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, d := range days {
				if _, err := stmt.ExecContext(ctx,
					d.Date.Format(dateFmt), d.Year, d.Quarter, d.Month,
					d.WeekOfYear, d.DayOfWeek, d.DayName,
					boolInt(d.IsWeekend), boolInt(d.IsWeekday),
					d.MonthStart.Format(dateFmt), d.QuarterStart.Format(dateFmt),
				); err != nil {
					return err
				}
			}
			return nil
		})
}

// SaveDailySeries writes the zero-filled daily/cumulative series.
func (s *Store) SaveDailySeries(ctx context.Context, rows []model.DailyCount) error {
	return s.rebuild(ctx,
		`DROP TABLE IF EXISTS daily_stars`,
		`CREATE TABLE daily_stars (
		  repo TEXT NOT NULL, date TEXT NOT NULL,
		  stars_on_day INTEGER NOT NULL, cumulative_stars INTEGER NOT NULL,
		  PRIMARY KEY (repo, date)
		)`,
		func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_stars VALUES(?,?,?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, r := range rows {
				if _, err := stmt.ExecContext(ctx, r.Repo, r.Date.Format(dateFmt), r.Stars, r.Cumulative); err != nil {
					return err
				}
			}
			return nil
		})
}

// SaveRepoTotals writes per-repo star counts.
func (s *Store) SaveRepoTotals(ctx context.Context, rows []model.RepoTotal) error {
	return s.rebuild(ctx,
		`DROP TABLE IF EXISTS repo_totals`,
		`CREATE TABLE repo_totals (repo TEXT PRIMARY KEY, stars INTEGER NOT NULL)`,
		func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO repo_totals VALUES(?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, r := range rows {
				if _, err := stmt.ExecContext(ctx, r.Repo, r.Stars); err != nil {
					return err
				}
			}
			return nil
		})
}

// SaveUserActivity writes per-actor summaries. The repo list is stored as a
// JSON array ordered by first occurrence; avg_gap_days is NULL for actors
// with a single event.
func (s *Store) SaveUserActivity(ctx context.Context, rows []model.UserSummary) error {
	return s.rebuild(ctx,
		`DROP TABLE IF EXISTS user_activity`,
		`CREATE TABLE user_activity (
		  actor_id INTEGER PRIMARY KEY, actor_login TEXT NOT NULL,
		  repos_count INTEGER NOT NULL, repos_list TEXT NOT NULL,
		  first_event_at TEXT NOT NULL, last_event_at TEXT NOT NULL,
		  avg_gap_days REAL
		)`,
		func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO user_activity VALUES(?,?,?,?,?,?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, r := range rows {
				list, _ := json.Marshal(r.Repos)
				var gap any
				if r.AvgGapDays != nil {
					gap = *r.AvgGapDays
				}
				if _, err := stmt.ExecContext(ctx,
					r.ActorID, r.ActorLogin, r.RepoCount, string(list),
					r.FirstAt.UTC().Format(time.RFC3339), r.LastAt.UTC().Format(time.RFC3339),
					gap,
				); err != nil {
					return err
				}
			}
			return nil
		})
}

// SaveOverlap writes the cross-repo overlap histogram.
func (s *Store) SaveOverlap(ctx context.Context, rows []model.OverlapBucket) error {
	return s.rebuild(ctx,
		`DROP TABLE IF EXISTS overlap_histogram`,
		`CREATE TABLE overlap_histogram (repos_count INTEGER PRIMARY KEY, actors INTEGER NOT NULL)`,
		func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO overlap_histogram VALUES(?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, r := range rows {
				if _, err := stmt.ExecContext(ctx, r.RepoCount, r.Actors); err != nil {
					return err
				}
			}
			return nil
		})
}

// RepoTotals reads the totals mart back, ordered by stars descending.
func (s *Store) RepoTotals(ctx context.Context) ([]model.RepoTotal, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT repo, stars FROM repo_totals ORDER BY stars DESC, repo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RepoTotal
	for rows.Next() {
		var t model.RepoTotal
		if err := rows.Scan(&t.Repo, &t.Stars); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
