package transform

import (
	"context"
	"errors"

	"stargazer/internal/logging"
	"stargazer/internal/store/starstore"
)

// ErrRowInvalid marks raw rows that fail staging validation (null required
// fields, unparsable timestamps). Such rows are rejected, never coerced.
var ErrRowInvalid = errors.New("raw row failed staging validation")

// Result reports one pipeline run.
type Result struct {
	RawRows  int
	Staged   int
	Rejected int
}

// Run rebuilds the staging and mart relations from the raw partitions.
// Every stage is a stateless recomputation: drop, recreate, repopulate.
//
//   - stg_stars casts raw columns to canonical types with an explicit column
//     list; rows with missing required fields are filtered out and counted.
//   - stars is the pass-through mart materialization of the staged union
//     (the union across partitions is inherent to the keyed relation).
//
// The rebuild runs in one transaction so readers see either the previous
// relations or the new ones.
func Run(ctx context.Context, st *starstore.Store) (Result, error) {
	var res Result
	db := st.DB()

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_stars`).Scan(&res.RawRows); err != nil {
		return res, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS stg_stars`,
		`CREATE TABLE stg_stars AS
		 SELECT
		   CAST(actor_login AS TEXT)    AS actor_login,
		   CAST(actor_id AS INTEGER)    AS actor_id,
		   CAST(repo AS TEXT)           AS repo,
		   CAST(strftime('%s', starred_at) AS INTEGER)   AS starred_at,
		   CAST(strftime('%s', extracted_at) AS INTEGER) AS extracted_at
		 FROM raw_stars
		 WHERE actor_login IS NOT NULL AND actor_login <> ''
		   AND actor_id IS NOT NULL
		   AND starred_at IS NOT NULL
		   AND strftime('%s', starred_at) IS NOT NULL`,
		`DROP TABLE IF EXISTS stars`,
		`CREATE TABLE stars AS
		 SELECT actor_login, actor_id, repo, starred_at, extracted_at FROM stg_stars`,
		`CREATE INDEX idx_stars_repo ON stars(repo, starred_at)`,
		`CREATE INDEX idx_stars_actor ON stars(actor_id, starred_at)`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return res, err
		}
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stg_stars`).Scan(&res.Staged); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}

	res.Rejected = res.RawRows - res.Staged
	if res.Rejected > 0 {
		logging.Warn("staging_rejected_rows", map[string]any{
			"rejected": res.Rejected, "staged": res.Staged, "error": ErrRowInvalid.Error(),
		})
	}
	return res, nil
}
