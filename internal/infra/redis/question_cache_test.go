package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
	"github.com/klairtech/thalassemia-quiz/internal/infra/memory"
)

type countingLoader struct {
	loader QuestionLoader
	calls  int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.QuizQuestion, error) {
	l.calls++
	return l.loader.LoadQuestions(ctx)
}

func newTestCache(t *testing.T, loader QuestionLoader, ttl time.Duration) (*QuestionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQuestionCache(client, loader, ttl), mr
}

func samplePool() []domain.QuizQuestion {
	return []domain.QuizQuestion{
		{ID: "q1", Question: "Thalassemia is inherited.", Options: []string{"True", "False"}, CorrectAnswers: []int{0}},
		{ID: "q2", Question: "Which organ stores excess iron?", Options: []string{"Liver", "Skin"}, CorrectAnswers: []int{0}},
	}
}

func TestQuestionCacheCachesInRedis(t *testing.T) {
	loader := &countingLoader{loader: memory.NewStaticQuestionLoader(samplePool())}
	cache, mr := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		questions, err := cache.GetQuestions(ctx)
		if err != nil {
			t.Fatalf("get questions: %v", err)
		}
		if len(questions) != 2 || questions[0].ID != "q1" {
			t.Fatalf("unexpected pool: %+v", questions)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single backing load, got %d", loader.calls)
	}
	if !mr.Exists(questionsKey) {
		t.Fatalf("expected %s to be cached", questionsKey)
	}
}

func TestQuestionCacheReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{loader: memory.NewStaticQuestionLoader(samplePool())}
	cache, mr := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetQuestions(ctx); err != nil {
		t.Fatalf("get questions: %v", err)
	}

	// Jitter can extend the TTL by up to 10%, so step well past it.
	mr.FastForward(2 * time.Minute)

	if _, err := cache.GetQuestions(ctx); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", loader.calls)
	}
}

func TestQuestionCacheIgnoresCorruptCacheValue(t *testing.T) {
	loader := &countingLoader{loader: memory.NewStaticQuestionLoader(samplePool())}
	cache, mr := newTestCache(t, loader, time.Minute)

	if err := mr.Set(questionsKey, "not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	questions, err := cache.GetQuestions(context.Background())
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected fallback to loader, got %d questions", len(questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader hit on corrupt cache, got %d", loader.calls)
	}
}

func TestQuestionCachePropagatesLoaderErrors(t *testing.T) {
	loader := &countingLoader{loader: memory.NewStaticQuestionLoader(nil)}
	cache, _ := newTestCache(t, loader, time.Minute)

	if _, err := cache.GetQuestions(context.Background()); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}
