package domain

import "time"

// NoAnswer marks a question that timed out without a selection.
const NoAnswer = -1

// Identity is the chat user's display snapshot.
type Identity struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []string `json:"options" yaml:"options"`
	Correct int      `json:"correct" yaml:"correct"`
}

// QuizDefinition is the quiz served for one period. Period and ValidUntil are
// calendar dates formatted as DateLayout.
type QuizDefinition struct {
	Period     string     `json:"period" yaml:"period"`
	ValidUntil string     `json:"validUntil" yaml:"valid_until"`
	Title      string     `json:"title,omitempty" yaml:"title"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// DateLayout is the format of period keys and validity boundaries.
const DateLayout = "2006-01-02"

// AttemptFlag records that a user completed a period's quiz.
type AttemptFlag struct {
	UserID    string
	Period    string
	Username  string
	FirstName string
}

// SessionState is a user's in-progress attempt. A user has at most one.
type SessionState struct {
	AttemptID         string    `json:"attemptId"`
	UserID            string    `json:"userId"`
	ChatID            string    `json:"chatId"`
	Period            string    `json:"period"`
	QuestionIndex     int       `json:"questionIndex"`
	Score             int       `json:"score"`
	StartedAt         time.Time `json:"startedAt"`
	QuestionStartedAt time.Time `json:"questionStartedAt"`
	Answers           []int     `json:"answers"`
}

// Consistent reports whether the recorded answers line up with the question index.
func (s SessionState) Consistent() bool {
	return len(s.Answers) == s.QuestionIndex
}

// ResultRecord is the finalized outcome of one attempt.
type ResultRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Period         string    `json:"period"`
	Username       string    `json:"username"`
	FirstName      string    `json:"firstName"`
	Score          int       `json:"score"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	Answers        []int     `json:"answers"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DisplayName picks the friendliest available name.
func (r ResultRecord) DisplayName() string {
	switch {
	case r.FirstName != "":
		return r.FirstName
	case r.Username != "":
		return r.Username
	default:
		return "Anonymous"
	}
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
}

// Leaderboard captures the ordered scoreboard for a quiz period.
type Leaderboard struct {
	Period  string             `json:"period"`
	Total   int                `json:"total"`
	Entries []LeaderboardEntry `json:"entries"`
}
