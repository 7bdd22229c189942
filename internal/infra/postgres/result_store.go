package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"quiz-session-service/internal/domain"
)

type sessionResultRow struct {
	bun.BaseModel `bun:"table:session_results"`

	SessionID      string    `bun:"session_id,pk"`
	Run            int       `bun:"run,pk"`
	CatalogID      string    `bun:"catalog_id"`
	UserID         string    `bun:"user_id"`
	SkillID        string    `bun:"skill_id"`
	Difficulty     string    `bun:"difficulty"`
	StartedAt      time.Time `bun:"started_at"`
	EndedAt        time.Time `bun:"ended_at"`
	ElapsedSeconds int       `bun:"elapsed_seconds"`
	TotalQuestions int       `bun:"total_questions"`
	TotalAnswered  int       `bun:"total_answered"`
	TotalCorrect   int       `bun:"total_correct"`

	Attempts []*questionAttemptRow `bun:"rel:has-many,join:session_id=session_id,join:run=run"`
}

type questionAttemptRow struct {
	bun.BaseModel `bun:"table:question_attempts"`

	SessionID     string `bun:"session_id,pk"`
	Run           int    `bun:"run,pk"`
	Position      int    `bun:"position,pk"`
	QuestionID    string `bun:"question_id"`
	Prompt        string `bun:"prompt"`
	CorrectAnswer string `bun:"correct_answer"`
	StudentAnswer string `bun:"student_answer"`
	Answered      bool   `bun:"answered"`
	IsCorrect     bool   `bun:"is_correct"`
}

type skillProgressRow struct {
	bun.BaseModel `bun:"table:skill_progress"`

	UserID            string    `bun:"user_id,pk"`
	SkillID           string    `bun:"skill_id,pk"`
	TotalAttempted    int       `bun:"total_attempted"`
	TotalCorrect      int       `bun:"total_correct"`
	TotalTimeSeconds  int       `bun:"total_time_seconds"`
	CurrentDifficulty string    `bun:"current_difficulty"`
	CorrectStreak     int       `bun:"correct_streak"`
	WrongStreak       int       `bun:"wrong_streak"`
	UpdatedAt         time.Time `bun:"updated_at"`
}

// ResultStore records completed sessions and skill progress through bun.
// It runs against Postgres (pgdialect) in production and SQLite in tests.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Record stores the result with its attempts and folds it into the learner's
// skill progress in one transaction.
func (s *ResultStore) Record(ctx context.Context, result domain.SessionResult) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := toResultRow(result)
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return errors.Wrapf(err, "insert result %s/%d", result.SessionID, result.Run)
		}
		if len(row.Attempts) > 0 {
			if _, err := tx.NewInsert().Model(&row.Attempts).Exec(ctx); err != nil {
				return errors.Wrapf(err, "insert attempts %s/%d", result.SessionID, result.Run)
			}
		}
		if !result.TracksProgress() {
			return nil
		}
		return applyProgress(ctx, tx, result)
	})
}

func applyProgress(ctx context.Context, tx bun.Tx, result domain.SessionResult) error {
	existing := new(skillProgressRow)
	err := tx.NewSelect().
		Model(existing).
		Where("user_id = ?", result.UserID).
		Where("skill_id = ?", result.SkillID).
		Scan(ctx)
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return errors.Wrapf(err, "select progress %s/%s", result.UserID, result.SkillID)
	}

	progress := existing.toDomain()
	progress.Apply(result)
	row := toProgressRow(progress)

	if found {
		_, err = tx.NewUpdate().Model(row).WherePK().Exec(ctx)
	} else {
		_, err = tx.NewInsert().Model(row).Exec(ctx)
	}
	if err != nil {
		return errors.Wrapf(err, "save progress %s/%s", result.UserID, result.SkillID)
	}
	return nil
}

func (s *ResultStore) Progress(ctx context.Context, userID string) ([]domain.SkillProgress, error) {
	var rows []skillProgressRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("skill_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "list progress %s", userID)
	}
	out := make([]domain.SkillProgress, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *ResultStore) RecentResults(ctx context.Context, userID string, limit int) ([]domain.SessionResult, error) {
	var rows []*sessionResultRow
	q := s.db.NewSelect().
		Model(&rows).
		Relation("Attempts", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		Order("ended_at DESC", "run DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrapf(err, "list results %s", userID)
	}
	out := make([]domain.SessionResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func toResultRow(r domain.SessionResult) *sessionResultRow {
	row := &sessionResultRow{
		SessionID:      r.SessionID,
		Run:            r.Run,
		CatalogID:      r.CatalogID,
		UserID:         r.UserID,
		SkillID:        r.SkillID,
		Difficulty:     r.Difficulty,
		StartedAt:      r.StartedAt.UTC(),
		EndedAt:        r.EndedAt.UTC(),
		ElapsedSeconds: r.ElapsedSeconds,
		TotalQuestions: r.TotalQuestions,
		TotalAnswered:  r.TotalAnswered,
		TotalCorrect:   r.TotalCorrect,
	}
	for _, a := range r.Attempts {
		row.Attempts = append(row.Attempts, &questionAttemptRow{
			SessionID:     r.SessionID,
			Run:           r.Run,
			Position:      a.Position,
			QuestionID:    a.QuestionID,
			Prompt:        a.Prompt,
			CorrectAnswer: a.CorrectAnswer,
			StudentAnswer: a.StudentAnswer,
			Answered:      a.Answered,
			IsCorrect:     a.Correct,
		})
	}
	return row
}

func (row *sessionResultRow) toDomain() domain.SessionResult {
	r := domain.SessionResult{
		SessionID:      row.SessionID,
		Run:            row.Run,
		CatalogID:      row.CatalogID,
		UserID:         row.UserID,
		SkillID:        row.SkillID,
		Difficulty:     row.Difficulty,
		StartedAt:      row.StartedAt,
		EndedAt:        row.EndedAt,
		ElapsedSeconds: row.ElapsedSeconds,
		TotalQuestions: row.TotalQuestions,
		TotalAnswered:  row.TotalAnswered,
		TotalCorrect:   row.TotalCorrect,
		Attempts:       make([]domain.AttemptRecord, 0, len(row.Attempts)),
	}
	for _, a := range row.Attempts {
		r.Attempts = append(r.Attempts, domain.AttemptRecord{
			Position:      a.Position,
			QuestionID:    a.QuestionID,
			Prompt:        a.Prompt,
			CorrectAnswer: a.CorrectAnswer,
			StudentAnswer: a.StudentAnswer,
			Answered:      a.Answered,
			Correct:       a.IsCorrect,
		})
	}
	return r
}

func (row *skillProgressRow) toDomain() domain.SkillProgress {
	return domain.SkillProgress{
		UserID:            row.UserID,
		SkillID:           row.SkillID,
		TotalAttempted:    row.TotalAttempted,
		TotalCorrect:      row.TotalCorrect,
		TotalTimeSeconds:  row.TotalTimeSeconds,
		CurrentDifficulty: row.CurrentDifficulty,
		CorrectStreak:     row.CorrectStreak,
		WrongStreak:       row.WrongStreak,
		UpdatedAt:         row.UpdatedAt,
	}
}

func toProgressRow(p domain.SkillProgress) *skillProgressRow {
	return &skillProgressRow{
		UserID:            p.UserID,
		SkillID:           p.SkillID,
		TotalAttempted:    p.TotalAttempted,
		TotalCorrect:      p.TotalCorrect,
		TotalTimeSeconds:  p.TotalTimeSeconds,
		CurrentDifficulty: p.CurrentDifficulty,
		CorrectStreak:     p.CorrectStreak,
		WrongStreak:       p.WrongStreak,
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
}
