package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
	"github.com/klairtech/thalassemia-quiz/internal/leaderboard"
	"github.com/klairtech/thalassemia-quiz/internal/scoring"
)

// defaultLeaderboardLimit mirrors the public leaderboard page size.
const defaultLeaderboardLimit = 50

// QuestionRepository loads the question pool (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context) ([]domain.QuizQuestion, error)
}

// AttemptRepository persists quiz attempts.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.QuizAttempt) error
	// AttachIdentity updates mobile/email on an existing attempt by its
	// storage id and clears the provisional flag. It never inserts.
	AttachIdentity(ctx context.Context, id, mobile, email string) (*domain.QuizAttempt, error)
}

// SubmitInput is a finished quiz session as reported by the client.
type SubmitInput struct {
	Name             string
	Mobile           string
	Email            string
	Language         string
	TotalQuestions   int
	CorrectAnswers   int
	TimeTakenSeconds int
	Answers          []domain.QuizAnswer
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	questions QuestionRepository
	attempts  AttemptRepository
	resolver  *leaderboard.Resolver
	rng       *rand.Rand
	log       *zap.Logger
}

func NewQuizService(questions QuestionRepository, attempts AttemptRepository, store leaderboard.Store, log *zap.Logger) *QuizService {
	return &QuizService{
		questions: questions,
		attempts:  attempts,
		resolver:  leaderboard.NewResolver(store),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log,
	}
}

// WithRand swaps the random source; test-only, for reproducible messages and
// shuffles.
func (s *QuizService) WithRand(rng *rand.Rand) *QuizService {
	s.rng = rng
	return s
}

// Questions returns up to limit randomly chosen questions, optionally
// filtered by difficulty.
func (s *QuizService) Questions(ctx context.Context, limit int, difficulty domain.Difficulty) ([]domain.QuizQuestion, error) {
	pool, err := s.questions.GetQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	if difficulty != "" {
		filtered := pool[:0:0]
		for _, q := range pool {
			if q.Difficulty == difficulty {
				filtered = append(filtered, q)
			}
		}
		pool = filtered
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestions
	}

	shuffled := make([]domain.QuizQuestion, len(pool))
	copy(shuffled, pool)
	scoring.Shuffle(shuffled, s.rng)
	if limit > 0 && limit < len(shuffled) {
		shuffled = shuffled[:limit]
	}
	return shuffled, nil
}

// SubmitAttempt scores a finished quiz and persists it. Submissions without
// contact details are saved under a generated placeholder mobile token and
// flagged provisional until AttachIdentity enriches them.
func (s *QuizService) SubmitAttempt(ctx context.Context, input SubmitInput) (*domain.QuizAttempt, domain.QuizResult, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.QuizResult{}, fmt.Errorf("%w: user name is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(input.Language) == "" {
		return nil, domain.QuizResult{}, fmt.Errorf("%w: language is required", domain.ErrInvalidInput)
	}

	answers, correct := s.evaluateAnswers(ctx, input)

	result, err := scoring.GenerateResult(input.TotalQuestions, correct, input.TimeTakenSeconds, s.rng)
	if err != nil {
		return nil, domain.QuizResult{}, err
	}

	mobile := strings.TrimSpace(input.Mobile)
	email := strings.TrimSpace(input.Email)
	provisional := false
	if mobile == "" && email == "" {
		mobile = "temp-" + uuid.NewString()
		provisional = true
	}

	attempt := &domain.QuizAttempt{
		ID:                uuid.NewString(),
		UserName:          strings.TrimSpace(input.Name),
		UserMobile:        mobile,
		UserEmail:         email,
		Language:          input.Language,
		QuestionsAnswered: input.TotalQuestions,
		CorrectAnswers:    correct,
		TimeTakenSeconds:  input.TimeTakenSeconds,
		MetaScore:         result.MetaScore,
		Answers:           answers,
		Provisional:       provisional,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, domain.QuizResult{}, fmt.Errorf("save quiz attempt: %w", err)
	}

	s.log.Info("quiz attempt saved",
		zap.String("attempt_id", attempt.ID),
		zap.Float64("meta_score", attempt.MetaScore),
		zap.String("grade", string(result.Grade)),
		zap.Bool("provisional", provisional))
	return attempt, result, nil
}

// evaluateAnswers re-checks self-reported correctness flags against the
// question pool. Answers referencing unknown questions, or all answers when
// the pool cannot be loaded, keep the client's flags.
func (s *QuizService) evaluateAnswers(ctx context.Context, input SubmitInput) ([]domain.QuizAnswer, int) {
	answers := make([]domain.QuizAnswer, len(input.Answers))
	copy(answers, input.Answers)
	if len(answers) == 0 {
		return answers, input.CorrectAnswers
	}

	pool, err := s.questions.GetQuestions(ctx)
	if err != nil {
		s.log.Warn("question pool unavailable, trusting client answer flags", zap.Error(err))
		return answers, input.CorrectAnswers
	}
	byID := make(map[string]domain.QuizQuestion, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}

	correct := 0
	for i := range answers {
		if q, ok := byID[answers[i].QuestionID]; ok {
			answers[i].IsCorrect = scoring.EvaluateSelection(q.CorrectAnswers, answers[i].SelectedAnswers)
		}
		if answers[i].IsCorrect {
			correct++
		}
	}
	return answers, correct
}

// AttachIdentity enriches an existing attempt with contact details. At least
// one of mobile/email must be supplied; only those two fields ever change.
func (s *QuizService) AttachIdentity(ctx context.Context, attemptID, mobile, email string) (*domain.QuizAttempt, error) {
	mobile = strings.TrimSpace(mobile)
	email = strings.TrimSpace(email)
	if mobile == "" && email == "" {
		return nil, fmt.Errorf("%w: mobile or email is required", domain.ErrInvalidInput)
	}
	attempt, err := s.attempts.AttachIdentity(ctx, attemptID, mobile, email)
	if err != nil {
		return nil, err
	}
	s.log.Info("attempt identity attached", zap.String("attempt_id", attemptID))
	return attempt, nil
}

// Leaderboard returns the ranked top list plus the current user's position.
func (s *QuizService) Leaderboard(ctx context.Context, limit int, current *domain.Identity) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	return s.resolver.Rank(ctx, limit, current)
}
