package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
)

// questionsKey holds the serialized question pool.
const questionsKey = "quiz:questions"

// QuestionLoader fetches the question pool from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.QuizQuestion, error)
}

// QuestionCache caches the question pool in Redis as one JSON blob and falls
// back to the loader on cache miss. The pool is shared reference content, so
// a single key with TTL jitter is enough.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestions(ctx context.Context) ([]domain.QuizQuestion, error) {
	if questions, ok := c.fromCache(ctx); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.fromCache(ctx); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			// Best effort: a failed cache write must not fail the read.
			_ = c.client.Set(ctx, questionsKey, data, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizQuestion), nil
}

func (c *QuestionCache) fromCache(ctx context.Context) ([]domain.QuizQuestion, bool) {
	data, err := c.client.Get(ctx, questionsKey).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var questions []domain.QuizQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, len(questions) > 0
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
