package transform

import (
	"context"
	"testing"
	"time"

	"stargazer/internal/model"
	"stargazer/internal/store/starstore"
)

func seed(t *testing.T, st *starstore.Store, repo string, n int) {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := make([]model.StarEvent, n)
	for i := range events {
		events[i] = model.StarEvent{
			ActorLogin:  "user",
			ActorID:     int64(i + 1),
			Repo:        repo,
			StarredAt:   base.Add(time.Duration(i) * time.Hour),
			ExtractedAt: base,
		}
	}
	if err := st.Replace(context.Background(), repo, events); err != nil {
		t.Fatal(err)
	}
}

func TestRunStagesAndMaterializes(t *testing.T) {
	st, err := starstore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "a/a", 3)
	seed(t, st, "b/b", 2)

	res, err := Run(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if res.RawRows != 5 || res.Staged != 5 || res.Rejected != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// mart is a pass-through of the staged union
	events, err := st.LoadStars(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 mart rows, got %d", len(events))
	}
	if events[0].Repo != "a/a" || events[0].ActorID == 0 || events[0].StarredAt.IsZero() {
		t.Fatalf("mart row not typed: %+v", events[0])
	}
	if !events[0].StarredAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp cast drifted: %v", events[0].StarredAt)
	}
}

func TestRunRejectsInvalidRows(t *testing.T) {
	st, err := starstore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "a/a", 2)

	// malformed upstream rows: missing login, missing id, unparsable timestamp
	bad := [][]any{
		{nil, int64(9), "a/a", "2024-03-01T00:00:00Z", "2024-03-01T00:00:00Z"},
		{"u", nil, "a/a", "2024-03-01T00:00:00Z", "2024-03-01T00:00:00Z"},
		{"u", int64(10), "a/a", "not-a-time", "2024-03-01T00:00:00Z"},
	}
	for _, row := range bad {
		if _, err := st.DB().ExecContext(ctx,
			`INSERT INTO raw_stars(actor_login, actor_id, repo, starred_at, extracted_at) VALUES(?,?,?,?,?)`,
			row...); err != nil {
			t.Fatal(err)
		}
	}

	res, err := Run(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if res.RawRows != 5 || res.Staged != 2 || res.Rejected != 3 {
		t.Fatalf("expected 3 rejected rows, got %+v", res)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	st, err := starstore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "a/a", 4)

	first, err := Run(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("recomputation drifted: %+v vs %+v", first, second)
	}
}
