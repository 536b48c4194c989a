package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
)

// pgUndefinedTable is the SQLSTATE for "relation does not exist".
const pgUndefinedTable = "42P01"

type attemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID                string              `bun:"id,pk"`
	UserName          string              `bun:"user_name,notnull"`
	UserMobile        string              `bun:"user_mobile"`
	UserEmail         string              `bun:"user_email"`
	Language          string              `bun:"language,notnull"`
	QuestionsAnswered int                 `bun:"questions_answered,notnull"`
	CorrectAnswers    int                 `bun:"correct_answers,notnull"`
	TimeTakenSeconds  int                 `bun:"time_taken_seconds,notnull"`
	MetaScore         float64             `bun:"meta_score,notnull"`
	Answers           []domain.QuizAnswer `bun:"answers,type:jsonb"`
	Provisional       bool                `bun:"provisional"`
	CreatedAt         time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type leaderboardRow struct {
	bun.BaseModel `bun:"table:leaderboard,alias:lb"`

	UserName      string    `bun:"user_name"`
	UserMobile    string    `bun:"user_mobile"`
	UserEmail     string    `bun:"user_email"`
	BestScore     float64   `bun:"best_score"`
	BestTime      int       `bun:"best_time"`
	TotalAttempts int       `bun:"total_attempts"`
	LastAttempt   time.Time `bun:"last_attempt"`
}

// AttemptRepository persists quiz attempts and serves leaderboard reads. It
// implements both app.AttemptRepository and leaderboard.Store.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.QuizAttempt) error {
	model := toModel(attempt)
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// AttachIdentity updates contact fields on an existing row by its storage id.
// Only user_mobile, user_email and the provisional flag ever change.
func (r *AttemptRepository) AttachIdentity(ctx context.Context, id, mobile, email string) (*domain.QuizAttempt, error) {
	query := r.db.NewUpdate().
		Model((*attemptModel)(nil)).
		Set("provisional = FALSE").
		Where("id = ?", id)
	if mobile != "" {
		query = query.Set("user_mobile = ?", mobile)
	}
	if email != "" {
		query = query.Set("user_email = ?", email)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update attempt identity: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return nil, domain.ErrAttemptNotFound
	}

	model := new(attemptModel)
	if err := r.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	return fromModel(model), nil
}

// TopEntries reads the precomputed leaderboard view. A missing view relation
// is reported as domain.ErrLeaderboardViewMissing so callers can fall back to
// raw attempt rows.
func (r *AttemptRepository) TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardRow
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("best_score DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, domain.ErrLeaderboardViewMissing
		}
		return nil, fmt.Errorf("query leaderboard view: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			UserName:      row.UserName,
			UserMobile:    row.UserMobile,
			UserEmail:     row.UserEmail,
			BestScore:     row.BestScore,
			BestTime:      row.BestTime,
			TotalAttempts: row.TotalAttempts,
			LastAttempt:   row.LastAttempt,
		})
	}
	return entries, nil
}

func (r *AttemptRepository) RecentAttempts(ctx context.Context, limit int) ([]domain.QuizAttempt, error) {
	var models []attemptModel
	err := r.db.NewSelect().
		Model(&models).
		OrderExpr("meta_score DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}

	attempts := make([]domain.QuizAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *fromModel(&models[i]))
	}
	return attempts, nil
}

// BestEntryFor finds the best attempt matching the identity rule, or nil when
// the identity has no attempts.
func (r *AttemptRepository) BestEntryFor(ctx context.Context, id domain.Identity) (*domain.LeaderboardEntry, error) {
	best := new(attemptModel)
	err := identityFilter(r.db.NewSelect().Model(best), id).
		OrderExpr("meta_score DESC").
		OrderExpr("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query best attempt: %w", err)
	}

	var total int
	var last time.Time
	err = identityFilter(r.db.NewSelect().Model((*attemptModel)(nil)), id).
		ColumnExpr("count(*)").
		ColumnExpr("max(created_at)").
		Scan(ctx, &total, &last)
	if err != nil {
		return nil, fmt.Errorf("aggregate attempts: %w", err)
	}

	return &domain.LeaderboardEntry{
		UserName:      best.UserName,
		UserMobile:    best.UserMobile,
		UserEmail:     best.UserEmail,
		BestScore:     best.MetaScore,
		BestTime:      best.TimeTakenSeconds,
		TotalAttempts: total,
		LastAttempt:   last,
	}, nil
}

func (r *AttemptRepository) CountBetterScores(ctx context.Context, score float64) (int, error) {
	count, err := r.db.NewSelect().
		With("best", r.bestScoreSubquery()).
		Table("best").
		Where("best_score > ?", score).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count better scores: %w", err)
	}
	return count, nil
}

func (r *AttemptRepository) CountEntries(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		With("best", r.bestScoreSubquery()).
		Table("best").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count leaderboard entries: %w", err)
	}
	return count, nil
}

// bestScoreSubquery deduplicates attempts to one best score per identity.
func (r *AttemptRepository) bestScoreSubquery() *bun.SelectQuery {
	return r.db.NewSelect().
		Model((*attemptModel)(nil)).
		ColumnExpr("max(meta_score) AS best_score").
		GroupExpr("user_mobile, user_email, user_name")
}

// identityFilter applies the single-rule match precedence as a SQL filter:
// the rule is chosen by which optional fields were supplied, never cascaded.
func identityFilter(q *bun.SelectQuery, id domain.Identity) *bun.SelectQuery {
	switch {
	case id.Mobile != "" && id.Email != "":
		return q.Where("user_mobile = ?", id.Mobile).
			Where("user_email = ?", id.Email).
			Where("user_name = ?", id.Name)
	case id.Mobile != "":
		return q.Where("user_mobile = ?", id.Mobile).Where("user_name = ?", id.Name)
	case id.Email != "":
		return q.Where("user_email = ?", id.Email).Where("user_name = ?", id.Name)
	default:
		return q.Where("user_name = ?", id.Name)
	}
}

func isUndefinedTable(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUndefinedTable
}

func toModel(a *domain.QuizAttempt) *attemptModel {
	return &attemptModel{
		ID:                a.ID,
		UserName:          a.UserName,
		UserMobile:        a.UserMobile,
		UserEmail:         a.UserEmail,
		Language:          a.Language,
		QuestionsAnswered: a.QuestionsAnswered,
		CorrectAnswers:    a.CorrectAnswers,
		TimeTakenSeconds:  a.TimeTakenSeconds,
		MetaScore:         a.MetaScore,
		Answers:           a.Answers,
		Provisional:       a.Provisional,
		CreatedAt:         a.CreatedAt,
	}
}

func fromModel(m *attemptModel) *domain.QuizAttempt {
	return &domain.QuizAttempt{
		ID:                m.ID,
		UserName:          m.UserName,
		UserMobile:        m.UserMobile,
		UserEmail:         m.UserEmail,
		Language:          m.Language,
		QuestionsAnswered: m.QuestionsAnswered,
		CorrectAnswers:    m.CorrectAnswers,
		TimeTakenSeconds:  m.TimeTakenSeconds,
		MetaScore:         m.MetaScore,
		Answers:           m.Answers,
		Provisional:       m.Provisional,
		CreatedAt:         m.CreatedAt,
	}
}

// SeedQuestions upserts the question pool; used by the seed command and
// integration tests.
func SeedQuestions(ctx context.Context, db *bun.DB, questions []domain.QuizQuestion) error {
	for _, question := range questions {
		data, err := json.Marshal(question)
		if err != nil {
			return fmt.Errorf("marshal question %s: %w", question.ID, err)
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO quiz_questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
			question.ID, string(data))
		if err != nil {
			return fmt.Errorf("insert question %s: %w", question.ID, err)
		}
	}
	return nil
}
