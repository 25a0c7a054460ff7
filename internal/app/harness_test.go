package app_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/catalog"
	"daily-quiz-bot/internal/clock"
	"daily-quiz-bot/internal/domain"
	"daily-quiz-bot/internal/infra/memory"
)

const period = "2025-12-25"

var (
	start = time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC)
	alice = domain.Identity{UserID: "u1", Username: "alice", FirstName: "Alice"}
	admin = domain.Identity{UserID: "u9", Username: "YS16108", FirstName: "Ys"}
)

type harness struct {
	service *app.QuizService
	bot     *app.Bot
	store   *memory.SessionStore
	gateway *fakeGateway
	clock   *clock.Fake
	timers  *app.Timers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, func(s *memory.SessionStore) app.Store { return s })
}

// newHarnessWith lets wrap decorate the memory store the service writes to.
func newHarnessWith(t *testing.T, wrap func(*memory.SessionStore) app.Store) *harness {
	t.Helper()
	fake := clock.NewFake(start)
	gw := newFakeGateway(alice, admin)
	store := memory.NewSessionStore()
	quizzes := catalog.New(catalog.NewStaticSource(sampleQuiz()), time.UTC, time.Minute)
	timers := app.NewTimers(fake, nil)
	service, err := app.NewQuizService(wrap(store), quizzes, gw, timers, app.Options{
		Clock:  fake,
		Admins: []string{"@ys16108"},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(service.Close)
	return &harness{
		service: service,
		bot:     app.NewBot(service, gw, nil),
		store:   store,
		gateway: gw,
		clock:   fake,
		timers:  timers,
	}
}

// play answers every question with options, waiting out the feedback delay.
func (h *harness) play(t *testing.T, id domain.Identity, options ...int) domain.ResultRecord {
	t.Helper()
	ctx := context.Background()
	if _, err := h.service.StartAttempt(ctx, id, id.UserID); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i, opt := range options {
		ref := h.gateway.lastSent(t).Ref
		if _, err := h.service.SubmitAnswer(ctx, id.UserID, ref, i, opt); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		h.clock.Advance(2 * time.Second)
	}
	result, err := h.store.GetResult(ctx, id.UserID, period)
	if err != nil {
		t.Fatalf("expected result after playing: %v", err)
	}
	return result
}

func (h *harness) session(t *testing.T, userID string) domain.SessionState {
	t.Helper()
	state, err := h.store.GetSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !state.Consistent() {
		t.Fatalf("inconsistent session %+v", state)
	}
	return state
}

func sampleQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		Period:     period,
		ValidUntil: "2025-12-27",
		Title:      "Christmas Quiz",
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Correct: 1},
			{Prompt: "Capital of France?", Options: []string{"Paris", "Rome"}, Correct: 0},
			{Prompt: "Largest planet?", Options: []string{"Mars", "Venus", "Jupiter"}, Correct: 2},
		},
	}
}

type sentMessage struct {
	ChatID  string
	Ref     string
	Text    string
	Buttons [][]app.Button
}

type buttonAck struct {
	ChatID string
	ID     string
	Notice string
}

// fakeGateway records everything the service renders.
type fakeGateway struct {
	mu         sync.Mutex
	seq        int
	sent       []sentMessage
	edits      []sentMessage
	acks       []buttonAck
	failSends  bool
	failEdits  bool
	identities map[string]domain.Identity
	// onSend runs after a message is recorded, outside the gateway lock.
	onSend func(ref, text string)
}

func newFakeGateway(ids ...domain.Identity) *fakeGateway {
	g := &fakeGateway{identities: make(map[string]domain.Identity)}
	for _, id := range ids {
		g.identities[id.UserID] = id
	}
	return g
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID, text string, buttons [][]app.Button) (string, error) {
	g.mu.Lock()
	if g.failSends {
		g.mu.Unlock()
		return "", fmt.Errorf("send: %w", domain.ErrRenderFailure)
	}
	g.seq++
	ref := fmt.Sprintf("m%d", g.seq)
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Ref: ref, Text: text, Buttons: buttons})
	hook := g.onSend
	g.mu.Unlock()

	if hook != nil {
		hook(ref, text)
	}
	return ref, nil
}

func (g *fakeGateway) EditMessage(_ context.Context, chatID, ref, text string, buttons [][]app.Button) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failEdits {
		return fmt.Errorf("edit: %w", domain.ErrRenderFailure)
	}
	g.edits = append(g.edits, sentMessage{ChatID: chatID, Ref: ref, Text: text, Buttons: buttons})
	return nil
}

func (g *fakeGateway) AnswerButton(_ context.Context, chatID, pressID, notice string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acks = append(g.acks, buttonAck{ChatID: chatID, ID: pressID, Notice: notice})
	return nil
}

func (g *fakeGateway) LookupIdentity(_ context.Context, userID string) (domain.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.identities[userID]
	if !ok {
		return domain.Identity{}, domain.ErrUserNotFound
	}
	return id, nil
}

func (g *fakeGateway) setFailEdits(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failEdits = fail
}

func (g *fakeGateway) setFailSends(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSends = fail
}

func (g *fakeGateway) setOnSend(fn func(ref, text string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSend = fn
}

func (g *fakeGateway) lastSent(t *testing.T) sentMessage {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return g.sent[len(g.sent)-1]
}

func (g *fakeGateway) lastEdit(t *testing.T) sentMessage {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.edits) == 0 {
		t.Fatalf("nothing edited")
	}
	return g.edits[len(g.edits)-1]
}

func (g *fakeGateway) counts() (sent, edits, acks int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent), len(g.edits), len(g.acks)
}

func (g *fakeGateway) editsContaining(substr string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.edits {
		if strings.Contains(e.Text, substr) {
			n++
		}
	}
	return n
}

func (g *fakeGateway) acksFor(id string) []buttonAck {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []buttonAck
	for _, a := range g.acks {
		if a.ID == id {
			out = append(out, a)
		}
	}
	return out
}

// flakyStore fails the next appends or marks with a storage error.
type flakyStore struct {
	*memory.SessionStore

	mu          sync.Mutex
	failAppends int
	failMarks   int
}

func (s *flakyStore) AppendResult(ctx context.Context, result domain.ResultRecord) error {
	s.mu.Lock()
	fail := s.failAppends > 0
	if fail {
		s.failAppends--
	}
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("append result: %w", domain.ErrStorageFailure)
	}
	return s.SessionStore.AppendResult(ctx, result)
}

func (s *flakyStore) MarkAttempted(ctx context.Context, flag domain.AttemptFlag) error {
	s.mu.Lock()
	fail := s.failMarks > 0
	if fail {
		s.failMarks--
	}
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("mark attempted: %w", domain.ErrStorageFailure)
	}
	return s.SessionStore.MarkAttempted(ctx, flag)
}
