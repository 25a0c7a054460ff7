package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Menu button payloads.
const (
	PayloadStartQuiz     = "start_quiz"
	PayloadLeaderboard   = "leaderboard"
	PayloadReviewAnswers = "review_answers"
)

const answerPrefix = "answer"

// Payload is a decoded button token. For answer buttons Kind is "answer".
type Payload struct {
	Kind          string
	QuestionIndex int
	OptionIndex   int
}

// AnswerPayload encodes an answer button as answer:<question>:<option>.
func AnswerPayload(questionIndex, optionIndex int) string {
	return fmt.Sprintf("%s:%d:%d", answerPrefix, questionIndex, optionIndex)
}

// ParsePayload decodes a button token.
func ParsePayload(raw string) (Payload, error) {
	switch raw {
	case PayloadStartQuiz, PayloadLeaderboard, PayloadReviewAnswers:
		return Payload{Kind: raw}, nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] != answerPrefix {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, raw)
	}
	q, err := strconv.Atoi(parts[1])
	if err != nil || q < 0 {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, raw)
	}
	o, err := strconv.Atoi(parts[2])
	if err != nil || o < 0 {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, raw)
	}
	return Payload{Kind: answerPrefix, QuestionIndex: q, OptionIndex: o}, nil
}

// IsAnswer reports whether the payload came from an answer button.
func (p Payload) IsAnswer() bool {
	return p.Kind == answerPrefix
}
