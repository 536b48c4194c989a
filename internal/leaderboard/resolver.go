package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
)

// overfetchFactor controls how many raw attempt rows are read beyond the
// requested limit so that per-identity grouping still fills the window.
const overfetchFactor = 2

// podiumSize is the number of top entries shown on the podium; users ranked
// inside it don't get a separate position panel.
const podiumSize = 3

// Store is what the resolver needs from persistence. TopEntries serves the
// precomputed view and reports domain.ErrLeaderboardViewMissing when the view
// relation does not exist; the remaining methods work off raw attempt rows.
type Store interface {
	// TopEntries returns one pre-aggregated row per identity, sorted by best
	// score descending, truncated to limit.
	TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	// RecentAttempts returns raw attempt rows ordered by meta score
	// descending, truncated to limit.
	RecentAttempts(ctx context.Context, limit int) ([]domain.QuizAttempt, error)
	// BestEntryFor returns the best entry for one identity, filtered by the
	// same match rule the resolver uses, or nil when the identity has no
	// attempts.
	BestEntryFor(ctx context.Context, id domain.Identity) (*domain.LeaderboardEntry, error)
	// CountBetterScores counts distinct identities whose best score strictly
	// exceeds the given score.
	CountBetterScores(ctx context.Context, score float64) (int, error)
	// CountEntries counts distinct identities with at least one attempt.
	CountEntries(ctx context.Context) (int, error)
}

// Resolver produces ranked leaderboards and locates one user within them.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Rank builds the top-N list and, when an identity is supplied, resolves that
// user's entry and rank. An identity with no attempts yields nil entry and
// rank without error.
func (r *Resolver) Rank(ctx context.Context, limit int, current *domain.Identity) (domain.Leaderboard, error) {
	entries, err := r.topEntries(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	total, err := r.store.CountEntries(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("count leaderboard entries: %w", err)
	}

	lb := domain.Leaderboard{TopEntries: entries, TotalEntries: total}
	if current == nil {
		return lb, nil
	}

	if idx := MatchIndex(entries, *current); idx >= 0 {
		rank := idx + 1
		entry := entries[idx]
		lb.CurrentUser = &entry
		lb.CurrentUserRank = &rank
		lb.HideCurrentUserPanel = rank <= podiumSize
		return lb, nil
	}

	// Below the cutoff: look the identity up directly and rank it against the
	// full population of identities, not just the visible window.
	entry, err := r.store.BestEntryFor(ctx, *current)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("lookup current user: %w", err)
	}
	if entry == nil {
		return lb, nil
	}
	better, err := r.store.CountBetterScores(ctx, entry.BestScore)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("rank current user: %w", err)
	}
	rank := better + 1
	lb.CurrentUser = entry
	lb.CurrentUserRank = &rank
	lb.HideCurrentUserPanel = rank <= podiumSize
	return lb, nil
}

// topEntries prefers the precomputed view and falls back to grouping raw
// attempt rows when the view relation is missing.
func (r *Resolver) topEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := r.store.TopEntries(ctx, limit)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, domain.ErrLeaderboardViewMissing) {
		return nil, fmt.Errorf("load leaderboard view: %w", err)
	}

	attempts, err := r.store.RecentAttempts(ctx, limit*overfetchFactor)
	if err != nil {
		return nil, fmt.Errorf("load attempts for leaderboard: %w", err)
	}
	grouped := BestPerIdentity(attempts)
	if len(grouped) > limit {
		grouped = grouped[:limit]
	}
	return grouped, nil
}

// BestPerIdentity collapses raw attempt rows to one entry per identity,
// keeping each identity's best-scoring attempt (strict comparison, so the
// first attempt seen wins ties) and sorting the result by best score
// descending. The sort is stable so tied identities keep input order.
func BestPerIdentity(attempts []domain.QuizAttempt) []domain.LeaderboardEntry {
	type group struct {
		best  domain.QuizAttempt
		count int
		last  domain.QuizAttempt
	}
	groups := make(map[domain.Identity]*group)
	order := make([]domain.Identity, 0, len(attempts))

	for _, attempt := range attempts {
		id := attempt.Identity()
		g, ok := groups[id]
		if !ok {
			groups[id] = &group{best: attempt, count: 1, last: attempt}
			order = append(order, id)
			continue
		}
		g.count++
		if attempt.MetaScore > g.best.MetaScore {
			g.best = attempt
		}
		if attempt.CreatedAt.After(g.last.CreatedAt) {
			g.last = attempt
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(order))
	for _, id := range order {
		g := groups[id]
		entries = append(entries, domain.LeaderboardEntry{
			UserName:      id.Name,
			UserMobile:    id.Mobile,
			UserEmail:     id.Email,
			BestScore:     g.best.MetaScore,
			BestTime:      g.best.TimeTakenSeconds,
			TotalAttempts: g.count,
			LastAttempt:   g.last.CreatedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BestScore > entries[j].BestScore
	})
	return entries
}

// MatchIndex finds the given identity in a ranked list and returns its
// zero-based index, or -1. Exactly one match rule applies, chosen by which
// optional fields were supplied; there is no cascading fallback through the
// weaker rules.
func MatchIndex(entries []domain.LeaderboardEntry, id domain.Identity) int {
	for i, entry := range entries {
		if Matches(entry.Identity(), id) {
			return i
		}
	}
	return -1
}

// Matches applies the single-rule identity precedence policy:
// mobile+email+name when both contacts were supplied, mobile+name or
// email+name when one was, name alone when neither.
func Matches(candidate, id domain.Identity) bool {
	switch {
	case id.Mobile != "" && id.Email != "":
		return candidate.Mobile == id.Mobile && candidate.Email == id.Email && candidate.Name == id.Name
	case id.Mobile != "":
		return candidate.Mobile == id.Mobile && candidate.Name == id.Name
	case id.Email != "":
		return candidate.Email == id.Email && candidate.Name == id.Name
	default:
		return candidate.Name == id.Name
	}
}
