package app

import (
	"context"
	"time"

	"daily-quiz-bot/internal/domain"
)

// Store abstracts durable quiz state (in-memory, Redis, Postgres). Every
// method is atomic for its key; I/O errors wrap domain.ErrStorageFailure.
type Store interface {
	HasAttempted(ctx context.Context, userID, period string) (bool, error)
	// MarkAttempted upserts the flag; repeating it is harmless.
	MarkAttempted(ctx context.Context, flag domain.AttemptFlag) error

	AppendResult(ctx context.Context, result domain.ResultRecord) error
	// GetResult returns the latest result or domain.ErrResultNotFound.
	GetResult(ctx context.Context, userID, period string) (domain.ResultRecord, error)
	// TopResults returns at most limit results ordered like domain.SortResults.
	TopResults(ctx context.Context, period string, limit int) ([]domain.ResultRecord, error)
	ListResults(ctx context.Context, period string) ([]domain.ResultRecord, error)
	// DeleteUserResults drops results and attempt flags of username for period
	// and returns how many results were removed.
	DeleteUserResults(ctx context.Context, period, username string) (int, error)

	// CreateSession overwrites any session the user already has.
	CreateSession(ctx context.Context, state domain.SessionState) error
	// GetSession returns domain.ErrSessionNotFound when the user has none.
	GetSession(ctx context.Context, userID string) (domain.SessionState, error)
	// UpdateSession commits state only while the stored session still has the
	// same attempt and QuestionIndex == expectedIndex; otherwise it returns
	// domain.ErrStaleSession.
	UpdateSession(ctx context.Context, expectedIndex int, state domain.SessionState) error
	DeleteSession(ctx context.Context, userID string) error
}

// QuizCatalog answers which quiz is active and what it contains.
type QuizCatalog interface {
	CurrentPeriod(ctx context.Context, now time.Time) (string, error)
	QuestionsFor(ctx context.Context, period string) ([]domain.Question, error)
	Definition(ctx context.Context, period string) (domain.QuizDefinition, error)
}

// Button is an inline action attached to an outbound message.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Gateway is the outbound half of the chat transport.
type Gateway interface {
	SendMessage(ctx context.Context, chatID, text string, buttons [][]Button) (messageRef string, err error)
	// EditMessage rewrites a previously sent message. Failures wrap
	// domain.ErrRenderFailure.
	EditMessage(ctx context.Context, chatID, messageRef, text string, buttons [][]Button) error
	AnswerButton(ctx context.Context, chatID, pressID, notice string) error
	LookupIdentity(ctx context.Context, userID string) (domain.Identity, error)
}
