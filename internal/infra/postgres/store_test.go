package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
	_ "modernc.org/sqlite"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/postgres"
	"quiz-session-service/internal/infra/postgres/migrations"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleCatalog() domain.Catalog {
	return domain.Catalog{
		ID:         "arith-1",
		Title:      "Arithmetic",
		SkillID:    "addition",
		Difficulty: "Easy",
		Questions: []domain.Question{
			{ID: "1", Kind: domain.KindSingleChoice, Prompt: "2 + 3 = ?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: "5"},
			{ID: "2", Kind: domain.KindFreeText, Prompt: "Spell 4", CorrectAnswer: "four"},
		},
	}
}

func TestCatalogStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewCatalogStore(newTestDB(t))

	if _, err := store.LoadCatalog(ctx, "arith-1"); err != domain.ErrCatalogNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	catalog := sampleCatalog()
	if err := store.SaveCatalog(ctx, catalog); err != nil {
		t.Fatalf("save: %v", err)
	}
	catalog.Title = "Arithmetic II"
	if err := store.SaveCatalog(ctx, catalog); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.LoadCatalog(ctx, "arith-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != "Arithmetic II" || len(got.Questions) != 2 || got.Questions[0].CorrectAnswer != "5" {
		t.Fatalf("unexpected catalog %+v", got)
	}

	list, err := store.ListCatalogs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].QuestionCount != 2 {
		t.Fatalf("unexpected summaries %+v", list)
	}
}

func result(sessionID string, run int, ended time.Time, correct ...bool) domain.SessionResult {
	r := domain.SessionResult{
		SessionID:      sessionID,
		Run:            run,
		CatalogID:      "arith-1",
		UserID:         "u1",
		SkillID:        "addition",
		Difficulty:     "Medium",
		StartedAt:      ended.Add(-time.Minute),
		EndedAt:        ended,
		ElapsedSeconds: 60,
		TotalQuestions: len(correct) + 1,
	}
	for i, c := range correct {
		r.Attempts = append(r.Attempts, domain.AttemptRecord{
			Position: i, QuestionID: fmt.Sprint(i + 1), Prompt: "p", CorrectAnswer: "x",
			StudentAnswer: "y", Answered: true, Correct: c,
		})
		r.TotalAnswered++
		if c {
			r.TotalCorrect++
		}
	}
	// one unanswered question at the end
	r.Attempts = append(r.Attempts, domain.AttemptRecord{Position: len(correct), QuestionID: "last", CorrectAnswer: "z"})
	return r
}

func TestResultStoreRecordsAndAccumulates(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewResultStore(newTestDB(t))
	t0 := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, result("s1", 1, t0, true, true, false)); err != nil {
		t.Fatalf("record 1: %v", err)
	}
	// restarted session produces a second run under the same id
	if err := store.Record(ctx, result("s1", 2, t0.Add(time.Hour), false, true)); err != nil {
		t.Fatalf("record 2: %v", err)
	}
	if err := store.Record(ctx, result("s1", 2, t0.Add(time.Hour), true)); err == nil {
		t.Fatalf("expected duplicate run to be rejected")
	}

	progress, err := store.Progress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("expected one skill row, got %d", len(progress))
	}
	p := progress[0]
	if p.TotalAttempted != 5 || p.TotalCorrect != 3 || p.TotalTimeSeconds != 120 {
		t.Fatalf("unexpected totals %+v", p)
	}
	if p.CorrectStreak != 1 || p.WrongStreak != 0 || p.CurrentDifficulty != "Medium" {
		t.Fatalf("unexpected streaks %+v", p)
	}
	if !p.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected updated at %s", p.UpdatedAt)
	}

	recent, err := store.RecentResults(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Run != 2 || recent[1].Run != 1 {
		t.Fatalf("expected newest run first, got %+v", recent)
	}
	first := recent[1]
	if len(first.Attempts) != 4 || first.Attempts[0].Position != 0 || first.Attempts[3].Answered {
		t.Fatalf("unexpected attempts %+v", first.Attempts)
	}
	if first.TotalCorrect != 2 || !first.Attempts[1].Correct || first.Attempts[2].Correct {
		t.Fatalf("unexpected verdicts %+v", first)
	}

	limited, _ := store.RecentResults(ctx, "u1", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestResultStoreAnonymousResult(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewResultStore(newTestDB(t))

	r := result("anon", 1, time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC), true)
	r.UserID = ""
	if err := store.Record(ctx, r); err != nil {
		t.Fatalf("record: %v", err)
	}
	if progress, _ := store.Progress(ctx, ""); len(progress) != 0 {
		t.Fatalf("anonymous results must not create progress, got %+v", progress)
	}
}
