package domain

import "time"

// QuestionType tags how a question is answered.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionTrueFalse   QuestionType = "true_false"
	QuestionMultiSelect QuestionType = "multi_select"
)

// Difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuizQuestion is read-only reference content, authored externally.
type QuizQuestion struct {
	ID                 string       `json:"id"`
	Question           string       `json:"question"`
	Options            []string     `json:"options"`
	CorrectAnswers     []int        `json:"correct_answers"`
	Type               QuestionType `json:"question_type"`
	Difficulty         Difficulty   `json:"difficulty"`
	Category           string       `json:"category"`
	Explanation        string       `json:"correct_answer_explanation,omitempty"`
	OptionExplanations []string     `json:"option_explanations,omitempty"`
}

// QuizAnswer is one per-question record embedded in an attempt.
type QuizAnswer struct {
	QuestionID       string `json:"question_id"`
	SelectedAnswers  []int  `json:"selected_answers"`
	IsCorrect        bool   `json:"is_correct"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

// Identity is the self-reported, unverified user identity tuple. Mobile and
// email are optional; two identities compare equal only when all three fields
// match exactly, empties included. It is comparable on purpose so it can be
// used directly as a map key when grouping attempts.
type Identity struct {
	Name   string `json:"user_name"`
	Mobile string `json:"user_mobile"`
	Email  string `json:"user_email"`
}

// QuizAttempt is one completed quiz session. Attempts saved without contact
// details carry a generated placeholder mobile token and Provisional=true
// until identity attachment replaces it.
type QuizAttempt struct {
	ID                string       `json:"id"`
	UserName          string       `json:"user_name"`
	UserMobile        string       `json:"user_mobile"`
	UserEmail         string       `json:"user_email,omitempty"`
	Language          string       `json:"language"`
	QuestionsAnswered int          `json:"questions_answered"`
	CorrectAnswers    int          `json:"correct_answers"`
	TimeTakenSeconds  int          `json:"time_taken_seconds"`
	MetaScore         float64      `json:"meta_score"`
	Answers           []QuizAnswer `json:"answers"`
	Provisional       bool         `json:"provisional"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Identity returns the attempt's identity tuple.
func (a QuizAttempt) Identity() Identity {
	return Identity{Name: a.UserName, Mobile: a.UserMobile, Email: a.UserEmail}
}

// Grade is the letter grade derived from a meta score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// QuizResult is the computed outcome of one attempt, carrying the raw inputs
// alongside the derived score fields.
type QuizResult struct {
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	TimeTaken      int     `json:"timeTaken"`
	Accuracy       float64 `json:"accuracy"`
	MetaScore      float64 `json:"metaScore"`
	TimeBonus      float64 `json:"timeBonus"`
	Grade          Grade   `json:"grade"`
	Message        string  `json:"message"`
}

// LeaderboardEntry is a derived read-model row: one entry per distinct
// identity, holding that identity's best attempt.
type LeaderboardEntry struct {
	UserName      string    `json:"user_name"`
	UserMobile    string    `json:"user_mobile"`
	UserEmail     string    `json:"user_email,omitempty"`
	BestScore     float64   `json:"best_score"`
	BestTime      int       `json:"best_time"`
	TotalAttempts int       `json:"total_attempts"`
	LastAttempt   time.Time `json:"last_attempt"`
}

// Identity returns the entry's identity tuple.
func (e LeaderboardEntry) Identity() Identity {
	return Identity{Name: e.UserName, Mobile: e.UserMobile, Email: e.UserEmail}
}

// Leaderboard is the full response for a leaderboard request.
type Leaderboard struct {
	TopEntries []LeaderboardEntry `json:"topEntries"`
	// CurrentUser and CurrentUserRank are nil when the requesting identity has
	// no recorded attempt; that is a normal outcome, not an error.
	CurrentUser     *LeaderboardEntry `json:"currentUser"`
	CurrentUserRank *int              `json:"currentUserRank"`
	TotalEntries    int               `json:"totalEntries"`
	// HideCurrentUserPanel tells the caller to skip the separate "your
	// position" panel because the user is already on the top-3 podium.
	HideCurrentUserPanel bool `json:"hideCurrentUserPanel"`
}
