package domain

import (
	"errors"
	"testing"
)

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload(AnswerPayload(3, 1))
	if err != nil {
		t.Fatalf("parse answer: %v", err)
	}
	if !p.IsAnswer() || p.QuestionIndex != 3 || p.OptionIndex != 1 {
		t.Fatalf("unexpected payload %+v", p)
	}

	for _, raw := range []string{PayloadStartQuiz, PayloadLeaderboard, PayloadReviewAnswers} {
		p, err := ParsePayload(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if p.Kind != raw || p.IsAnswer() {
			t.Fatalf("unexpected payload for %s: %+v", raw, p)
		}
	}

	for _, raw := range []string{"", "answer", "answer:1", "answer:x:1", "answer:1:-2", "vote:1:2", "answer:1:2:3"} {
		if _, err := ParsePayload(raw); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected invalid payload for %q, got %v", raw, err)
		}
	}
}
