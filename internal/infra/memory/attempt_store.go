package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
	"github.com/klairtech/thalassemia-quiz/internal/leaderboard"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository and
// leaderboard.Store, used by unit tests and the no-postgres dev mode. There
// is no precomputed view here, so TopEntries always reports the view as
// missing and the resolver takes the raw-rows path.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts []domain.QuizAttempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

func (s *AttemptStore) Create(_ context.Context, attempt *domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *AttemptStore) AttachIdentity(_ context.Context, id, mobile, email string) (*domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attempts {
		if s.attempts[i].ID != id {
			continue
		}
		if mobile != "" {
			s.attempts[i].UserMobile = mobile
		}
		if email != "" {
			s.attempts[i].UserEmail = email
		}
		s.attempts[i].Provisional = false
		updated := s.attempts[i]
		return &updated, nil
	}
	return nil, domain.ErrAttemptNotFound
}

func (s *AttemptStore) TopEntries(_ context.Context, _ int) ([]domain.LeaderboardEntry, error) {
	return nil, domain.ErrLeaderboardViewMissing
}

func (s *AttemptStore) RecentAttempts(_ context.Context, limit int) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.QuizAttempt, len(s.attempts))
	copy(rows, s.attempts)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].MetaScore > rows[j].MetaScore
	})
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *AttemptStore) BestEntryFor(_ context.Context, id domain.Identity) (*domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.QuizAttempt, 0)
	for _, attempt := range s.attempts {
		if leaderboard.Matches(attempt.Identity(), id) {
			matched = append(matched, attempt)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	best := matched[0]
	last := matched[0].CreatedAt
	for _, attempt := range matched[1:] {
		if attempt.MetaScore > best.MetaScore {
			best = attempt
		}
		if attempt.CreatedAt.After(last) {
			last = attempt.CreatedAt
		}
	}
	return &domain.LeaderboardEntry{
		UserName:      best.UserName,
		UserMobile:    best.UserMobile,
		UserEmail:     best.UserEmail,
		BestScore:     best.MetaScore,
		BestTime:      best.TimeTakenSeconds,
		TotalAttempts: len(matched),
		LastAttempt:   last,
	}, nil
}

func (s *AttemptStore) CountBetterScores(_ context.Context, score float64) (int, error) {
	entries, err := s.groupedEntries()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if e.BestScore > score {
			count++
		}
	}
	return count, nil
}

func (s *AttemptStore) CountEntries(_ context.Context) (int, error) {
	entries, err := s.groupedEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *AttemptStore) groupedEntries() ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.QuizAttempt, len(s.attempts))
	copy(rows, s.attempts)
	return leaderboard.BestPerIdentity(rows), nil
}
