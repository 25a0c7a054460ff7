package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/catalog"
	"daily-quiz-bot/internal/clock"
	"daily-quiz-bot/internal/domain"
	"daily-quiz-bot/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketQuizFlow(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC))
	hub := NewHub()
	store := memory.NewSessionStore()
	quizzes := catalog.New(catalog.NewStaticSource(sampleQuiz()), time.UTC, time.Minute)
	service, err := app.NewQuizService(store, quizzes, hub, app.NewTimers(fake, nil), app.Options{Clock: fake})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer service.Close()
	bot := app.NewBot(service, hub, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(hub, bot, nil).ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server, "userId=u1&username=alice&name=Alice")
	defer conn.Close()

	writeFrame(t, conn, "command", map[string]any{"name": "/start"})
	welcome := readFrame(t, conn)
	if welcome.Type != "message" || !strings.Contains(welcome.Payload.Text, "Christmas Quiz") {
		t.Fatalf("expected welcome message, got %+v", welcome)
	}
	if len(welcome.Payload.Buttons) == 0 || welcome.Payload.Buttons[0][0].Data != domain.PayloadStartQuiz {
		t.Fatalf("expected start button, got %+v", welcome.Payload.Buttons)
	}

	writeFrame(t, conn, "button", map[string]any{"id": "p1", "data": domain.PayloadStartQuiz})
	frames := readFrames(t, conn, 2)
	question := frames["message"]
	if !strings.Contains(question.Payload.Text, "Question 1/1") {
		t.Fatalf("expected first question, got %q", question.Payload.Text)
	}
	if frames["ack"].Payload.ID != "p1" {
		t.Fatalf("expected ack for p1, got %+v", frames["ack"])
	}

	writeFrame(t, conn, "button", map[string]any{
		"id":        "p2",
		"data":      domain.AnswerPayload(0, 1),
		"messageId": question.Payload.MessageID,
	})
	frames = readFrames(t, conn, 2)
	edit := frames["edit"]
	if edit.Payload.MessageID != question.Payload.MessageID || !strings.Contains(edit.Payload.Text, "Correct") {
		t.Fatalf("expected correct feedback on question message, got %+v", edit)
	}

	fake.Advance(2 * time.Second)
	summary := readFrame(t, conn)
	if summary.Type != "message" || !strings.Contains(summary.Payload.Text, "Score: 1/1") {
		t.Fatalf("expected summary, got %+v", summary)
	}

	result, err := store.GetResult(context.Background(), "u1", "2025-12-25")
	if err != nil {
		t.Fatalf("expected stored result: %v", err)
	}
	if result.Username != "alice" || result.FirstName != "Alice" {
		t.Fatalf("expected identity from connection, got %+v", result)
	}
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(hub, nopDispatcher{}, nil).ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without userId, got %d", resp.StatusCode)
	}

	conn := dial(t, server, "userId=u1")
	defer conn.Close()
	writeFrame(t, conn, "dance", map[string]any{})
	if f := readFrame(t, conn); f.Type != "error" {
		t.Fatalf("expected error frame, got %+v", f)
	}
}

func TestHubEditUnknownMessage(t *testing.T) {
	hub := NewHub()
	err := hub.EditMessage(context.Background(), "u1", "missing", "text", nil)
	if !errors.Is(err, domain.ErrRenderFailure) {
		t.Fatalf("expected render failure, got %v", err)
	}
	if _, err := hub.SendMessage(context.Background(), "u1", "hi", nil); !errors.Is(err, domain.ErrRenderFailure) {
		t.Fatalf("expected render failure for offline chat, got %v", err)
	}
	if _, err := hub.LookupIdentity(context.Background(), "u1"); err == nil {
		t.Fatalf("expected unknown identity")
	}
}

type frame struct {
	Type    string `json:"type"`
	Payload struct {
		MessageID string         `json:"messageId"`
		Text      string         `json:"text"`
		Buttons   [][]app.Button `json:"buttons"`
		ID        string         `json:"id"`
		Notice    string         `json:"notice"`
		Message   string         `json:"message"`
	} `json:"payload"`
}

type nopDispatcher struct{}

func (nopDispatcher) OnCommand(context.Context, app.Command)         {}
func (nopDispatcher) OnButtonPress(context.Context, app.ButtonPress) {}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return f
}

// readFrames reads n frames keyed by type; their relative order is not asserted.
func readFrames(t *testing.T, conn *websocket.Conn, n int) map[string]frame {
	t.Helper()
	out := make(map[string]frame, n)
	for i := 0; i < n; i++ {
		f := readFrame(t, conn)
		out[f.Type] = f
	}
	return out
}

func sampleQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		Period:     "2025-12-25",
		ValidUntil: "2025-12-27",
		Title:      "Christmas Quiz",
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Correct: 1},
		},
	}
}
