package scoring

import (
	"fmt"
	"math/rand"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
)

// maxTimeBonus is the ceiling of the decaying speed bonus; it reaches zero at
// or beyond that many elapsed seconds.
const maxTimeBonus = 30

// Score holds the derived numbers for one attempt.
type Score struct {
	MetaScore float64
	TimeBonus float64
	Accuracy  float64
}

// ComputeScore converts raw performance counters into a score. Inputs are
// validated here rather than trusted: a zero question count would otherwise
// divide to NaN.
func ComputeScore(correctAnswers, totalQuestions, timeTakenSeconds int) (Score, error) {
	if totalQuestions <= 0 {
		return Score{}, fmt.Errorf("%w: total questions must be positive, got %d", domain.ErrInvalidInput, totalQuestions)
	}
	if correctAnswers < 0 || correctAnswers > totalQuestions {
		return Score{}, fmt.Errorf("%w: correct answers %d out of range [0,%d]", domain.ErrInvalidInput, correctAnswers, totalQuestions)
	}
	if timeTakenSeconds < 0 {
		return Score{}, fmt.Errorf("%w: time taken must not be negative, got %d", domain.ErrInvalidInput, timeTakenSeconds)
	}

	accuracy := float64(correctAnswers) / float64(totalQuestions) * 100

	timeBonus := float64(maxTimeBonus - timeTakenSeconds)
	if timeBonus < 0 {
		timeBonus = 0
	}

	return Score{
		MetaScore: accuracy + timeBonus,
		TimeBonus: timeBonus,
		Accuracy:  accuracy,
	}, nil
}

// GradeOf maps a meta score onto a letter grade. Thresholds are inclusive
// lower bounds, checked highest first; anything below 60 (including negative
// input) is an F.
func GradeOf(metaScore float64) domain.Grade {
	switch {
	case metaScore >= 120:
		return domain.GradeAPlus
	case metaScore >= 110:
		return domain.GradeA
	case metaScore >= 100:
		return domain.GradeBPlus
	case metaScore >= 90:
		return domain.GradeB
	case metaScore >= 80:
		return domain.GradeCPlus
	case metaScore >= 70:
		return domain.GradeC
	case metaScore >= 60:
		return domain.GradeD
	default:
		return domain.GradeF
	}
}

// GenerateResult composes score, grade and message into one record. This is
// the single entry point for callers that finish a quiz.
func GenerateResult(totalQuestions, correctAnswers, timeTakenSeconds int, rng *rand.Rand) (domain.QuizResult, error) {
	score, err := ComputeScore(correctAnswers, totalQuestions, timeTakenSeconds)
	if err != nil {
		return domain.QuizResult{}, err
	}
	grade := GradeOf(score.MetaScore)

	return domain.QuizResult{
		TotalQuestions: totalQuestions,
		CorrectAnswers: correctAnswers,
		TimeTaken:      timeTakenSeconds,
		Accuracy:       score.Accuracy,
		MetaScore:      score.MetaScore,
		TimeBonus:      score.TimeBonus,
		Grade:          grade,
		Message:        MessageFor(grade, rng),
	}, nil
}

// EvaluateSelection reports whether a selection exactly matches the correct
// index set: equal cardinality and every correct index present, order
// independent. Single-choice and true/false questions are the one-element
// case.
func EvaluateSelection(correct, selected []int) bool {
	if len(correct) == 0 || len(correct) != len(selected) {
		return false
	}
	want := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		want[idx] = struct{}{}
	}
	// Duplicate selections must not pass by consuming the same index twice.
	for _, idx := range selected {
		if _, ok := want[idx]; !ok {
			return false
		}
		delete(want, idx)
	}
	return len(want) == 0
}

// Shuffle rearranges questions in place (Fisher-Yates) using the supplied
// random source.
func Shuffle(questions []domain.QuizQuestion, rng *rand.Rand) {
	for i := len(questions) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
