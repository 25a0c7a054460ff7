// Package storetest holds the behaviour every app.Store implementation must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/domain"
)

// Run exercises store against the app.Store contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) app.Store) {
	t.Helper()

	t.Run("AttemptFlags", func(t *testing.T) { testAttemptFlags(t, newStore(t)) })
	t.Run("ResultsOrdering", func(t *testing.T) { testResultsOrdering(t, newStore(t)) })
	t.Run("GetResultLatest", func(t *testing.T) { testGetResultLatest(t, newStore(t)) })
	t.Run("DeleteUserResults", func(t *testing.T) { testDeleteUserResults(t, newStore(t)) })
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("SessionCompareAndSwap", func(t *testing.T) { testSessionCompareAndSwap(t, newStore(t)) })
}

const period = "2025-12-25"

var base = time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC)

func testAttemptFlags(t *testing.T, store app.Store) {
	ctx := context.Background()

	attempted, err := store.HasAttempted(ctx, "u1", period)
	if err != nil {
		t.Fatalf("has attempted: %v", err)
	}
	if attempted {
		t.Fatalf("expected no flag yet")
	}

	flag := domain.AttemptFlag{UserID: "u1", Period: period, Username: "shubham", FirstName: "Shubham"}
	for i := 0; i < 2; i++ {
		if err := store.MarkAttempted(ctx, flag); err != nil {
			t.Fatalf("mark attempted #%d: %v", i+1, err)
		}
	}

	attempted, err = store.HasAttempted(ctx, "u1", period)
	if err != nil || !attempted {
		t.Fatalf("expected flag set, got %v (%v)", attempted, err)
	}
	attempted, err = store.HasAttempted(ctx, "u1", "2025-12-30")
	if err != nil || attempted {
		t.Fatalf("expected flag scoped to period, got %v (%v)", attempted, err)
	}
}

func testResultsOrdering(t *testing.T, store app.Store) {
	ctx := context.Background()
	seed := []domain.ResultRecord{
		result("r1", "1001", "ys16108", "Ys", 7, 94, 0),
		result("r2", "1002", "shubham", "Shubham", 7, 72, 1),
		result("r3", "1004", "ashish", "Ashish", 5, 115, 2),
	}
	for _, r := range seed {
		if err := store.AppendResult(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	other := result("r4", "1005", "other", "Other", 8, 10, 3)
	other.Period = "2025-12-30"
	if err := store.AppendResult(ctx, other); err != nil {
		t.Fatalf("append other period: %v", err)
	}

	top, err := store.TopResults(ctx, period, 10)
	if err != nil {
		t.Fatalf("top results: %v", err)
	}
	want := []struct{ score, elapsed int }{{7, 72}, {7, 94}, {5, 115}}
	if len(top) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(top))
	}
	for i, w := range want {
		if top[i].Score != w.score || top[i].ElapsedSeconds != w.elapsed {
			t.Fatalf("position %d: expected %d/%ds, got %d/%ds", i, w.score, w.elapsed, top[i].Score, top[i].ElapsedSeconds)
		}
	}
	if len(top[0].Answers) != 8 {
		t.Fatalf("expected answers preserved, got %v", top[0].Answers)
	}

	limited, err := store.TopResults(ctx, period, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected 2 limited results, got %d (%v)", len(limited), err)
	}

	all, err := store.ListResults(ctx, period)
	if err != nil || len(all) != 3 || all[0].UserID != "1002" {
		t.Fatalf("unexpected list %+v (%v)", all, err)
	}
}

func testGetResultLatest(t *testing.T, store app.Store) {
	ctx := context.Background()

	if _, err := store.GetResult(ctx, "1001", period); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}

	first := result("r1", "1001", "ys16108", "Ys", 3, 120, 0)
	second := result("r2", "1001", "ys16108", "Ys", 6, 80, 5)
	for _, r := range []domain.ResultRecord{first, second} {
		if err := store.AppendResult(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.GetResult(ctx, "1001", period)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.ID != "r2" || got.Score != 6 {
		t.Fatalf("expected latest result r2, got %+v", got)
	}
}

func testDeleteUserResults(t *testing.T, store app.Store) {
	ctx := context.Background()
	for _, r := range []domain.ResultRecord{
		result("r1", "1002", "Shubham", "Shubham", 7, 72, 0),
		result("r2", "1003", "dhiraj", "Dhiraj", 7, 180, 1),
	} {
		if err := store.AppendResult(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := store.MarkAttempted(ctx, domain.AttemptFlag{UserID: r.UserID, Period: period, Username: r.Username, FirstName: r.FirstName}); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}

	removed, err := store.DeleteUserResults(ctx, period, "@shubham")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if attempted, _ := store.HasAttempted(ctx, "1002", period); attempted {
		t.Fatalf("expected flag cleared")
	}
	if attempted, _ := store.HasAttempted(ctx, "1003", period); !attempted {
		t.Fatalf("expected other user's flag kept")
	}
	rest, err := store.ListResults(ctx, period)
	if err != nil || len(rest) != 1 || rest[0].UserID != "1003" {
		t.Fatalf("unexpected remaining results %+v (%v)", rest, err)
	}

	removed, err = store.DeleteUserResults(ctx, period, "nobody")
	if err != nil || removed != 0 {
		t.Fatalf("expected nothing removed, got %d (%v)", removed, err)
	}

	// Only surrounding space and a single @ are ignored.
	for _, r := range []domain.ResultRecord{
		result("r3", "1004", " @Carol ", "Carol", 4, 90, 2),
		result("r4", "1005", "@@carol", "Other", 3, 95, 3),
	} {
		if err := store.AppendResult(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	removed, err = store.DeleteUserResults(ctx, period, "carol")
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed for carol, got %d (%v)", removed, err)
	}
	rest, err = store.ListResults(ctx, period)
	if err != nil || len(rest) != 2 {
		t.Fatalf("unexpected remaining results %+v (%v)", rest, err)
	}
	for _, r := range rest {
		if r.UserID == "1004" {
			t.Fatalf("expected carol's result removed, got %+v", rest)
		}
	}
}

func testSessionLifecycle(t *testing.T, store app.Store) {
	ctx := context.Background()

	if _, err := store.GetSession(ctx, "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	first := session("a1", "u1")
	if err := store.CreateSession(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := session("a2", "u1")
	second.ChatID = "chat-2"
	if err := store.CreateSession(ctx, second); err != nil {
		t.Fatalf("create overwrite: %v", err)
	}

	got, err := store.GetSession(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AttemptID != "a2" || got.ChatID != "chat-2" || got.QuestionIndex != 0 || len(got.Answers) != 0 {
		t.Fatalf("expected overwritten session, got %+v", got)
	}
	if !got.StartedAt.Equal(base) {
		t.Fatalf("expected start time preserved, got %v", got.StartedAt)
	}

	if err := store.DeleteSession(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSession(ctx, "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func testSessionCompareAndSwap(t *testing.T, store app.Store) {
	ctx := context.Background()
	state := session("a1", "u1")
	if err := store.CreateSession(ctx, state); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := state
	next.QuestionIndex = 1
	next.Score = 1
	next.Answers = []int{2}
	next.QuestionStartedAt = base.Add(10 * time.Second)
	if err := store.UpdateSession(ctx, 0, next); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A racing transition for question 0 must lose.
	loser := state
	loser.QuestionIndex = 1
	loser.Answers = []int{domain.NoAnswer}
	if err := store.UpdateSession(ctx, 0, loser); !errors.Is(err, domain.ErrStaleSession) {
		t.Fatalf("expected stale session, got %v", err)
	}

	// So must a transition from an overwritten attempt.
	foreign := next
	foreign.AttemptID = "other"
	foreign.QuestionIndex = 2
	foreign.Answers = []int{2, 1}
	if err := store.UpdateSession(ctx, 1, foreign); !errors.Is(err, domain.ErrStaleSession) {
		t.Fatalf("expected stale session for foreign attempt, got %v", err)
	}

	got, err := store.GetSession(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuestionIndex != 1 || got.Score != 1 || len(got.Answers) != 1 || got.Answers[0] != 2 {
		t.Fatalf("unexpected session after race %+v", got)
	}
	if !got.QuestionStartedAt.Equal(next.QuestionStartedAt) {
		t.Fatalf("expected question start %v, got %v", next.QuestionStartedAt, got.QuestionStartedAt)
	}
}

func result(id, userID, username, firstName string, score, elapsed, offsetMin int) domain.ResultRecord {
	return domain.ResultRecord{
		ID:             id,
		UserID:         userID,
		Period:         period,
		Username:       username,
		FirstName:      firstName,
		Score:          score,
		ElapsedSeconds: elapsed,
		Answers:        []int{0, 1, 2, 3, 0, 1, domain.NoAnswer, 3},
		CreatedAt:      base.Add(time.Duration(offsetMin) * time.Minute),
	}
}

func session(attemptID, userID string) domain.SessionState {
	return domain.SessionState{
		AttemptID:         attemptID,
		UserID:            userID,
		ChatID:            "chat-1",
		Period:            period,
		StartedAt:         base,
		QuestionStartedAt: base,
		Answers:           []int{},
	}
}
