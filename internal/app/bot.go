package app

import (
	"context"
	"errors"
	"strings"

	"daily-quiz-bot/internal/domain"
	"daily-quiz-bot/internal/logger"
)

// Command is an inbound slash command such as /start or /clearuser bob.
type Command struct {
	Name   string
	Args   string
	ChatID string
	From   domain.Identity
}

// ButtonPress is an inbound press of an inline button.
type ButtonPress struct {
	ID         string
	Data       string
	ChatID     string
	MessageRef string
	From       domain.Identity
}

// Bot turns inbound chat events into quiz operations and every outcome into
// a reply, so no failure goes unanswered.
type Bot struct {
	service *QuizService
	gateway Gateway
	log     *logger.Logger
}

func NewBot(service *QuizService, gateway Gateway, log *logger.Logger) *Bot {
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{service: service, gateway: gateway, log: log}
}

// OnCommand handles a slash command.
func (b *Bot) OnCommand(ctx context.Context, cmd Command) {
	switch strings.TrimPrefix(strings.ToLower(cmd.Name), "/") {
	case "start":
		b.welcome(ctx, cmd.ChatID, cmd.From)
	case "leaderboard":
		b.showLeaderboard(ctx, cmd.ChatID)
	case "review":
		b.showReview(ctx, cmd.ChatID, cmd.From.UserID)
	case "listusers":
		period, results, err := b.service.ListResults(ctx, cmd.From)
		if err != nil {
			b.fail(ctx, cmd.ChatID, "list users", err)
			return
		}
		b.send(ctx, cmd.ChatID, userListText(period, results), nil)
	case "clearuser":
		target := strings.TrimPrefix(strings.TrimSpace(cmd.Args), "@")
		if target == "" {
			b.send(ctx, cmd.ChatID, clearUsageText, nil)
			return
		}
		period, err := b.service.ClearUser(ctx, cmd.From, target)
		switch {
		case err == nil:
			b.send(ctx, cmd.ChatID, clearedText(target, period), nil)
		case errors.Is(err, domain.ErrUserNotFound):
			b.send(ctx, cmd.ChatID, clearNotFoundText(target, period), nil)
		default:
			b.fail(ctx, cmd.ChatID, "clear user", err)
		}
	default:
		b.send(ctx, cmd.ChatID, helpText, nil)
	}
}

// OnButtonPress handles an inline button press. Every press is acknowledged
// exactly once.
func (b *Bot) OnButtonPress(ctx context.Context, press ButtonPress) {
	payload, err := domain.ParsePayload(press.Data)
	if err != nil {
		b.log.Debug("unknown button payload", "data", press.Data)
		b.ack(ctx, press, "Unknown action")
		return
	}

	switch {
	case payload.IsAnswer():
		b.answer(ctx, press, payload)
	case payload.Kind == domain.PayloadStartQuiz:
		_, err := b.service.StartAttempt(ctx, press.From, press.ChatID)
		switch {
		case err == nil:
			b.ack(ctx, press, "")
		case errors.Is(err, domain.ErrNoActiveQuiz):
			b.ack(ctx, press, "No active quiz!")
		case errors.Is(err, domain.ErrAlreadyAttempted):
			b.ack(ctx, press, alreadyAttemptedText)
		default:
			b.ack(ctx, press, "")
			b.fail(ctx, press.ChatID, "start attempt", err)
		}
	case payload.Kind == domain.PayloadLeaderboard:
		b.ack(ctx, press, "")
		b.showLeaderboard(ctx, press.ChatID)
	case payload.Kind == domain.PayloadReviewAnswers:
		b.ack(ctx, press, "")
		b.showReview(ctx, press.ChatID, press.From.UserID)
	}
}

func (b *Bot) answer(ctx context.Context, press ButtonPress, payload domain.Payload) {
	_, err := b.service.SubmitAnswer(ctx, press.From.UserID, press.MessageRef, payload.QuestionIndex, payload.OptionIndex)
	switch {
	case err == nil, errors.Is(err, domain.ErrAlreadyAdvanced):
		b.ack(ctx, press, "")
	case errors.Is(err, domain.ErrSessionExpired):
		b.ack(ctx, press, "")
		if err := b.gateway.EditMessage(ctx, press.ChatID, press.MessageRef, sessionExpiredText, nil); err != nil {
			b.send(ctx, press.ChatID, sessionExpiredText, nil)
		}
	case errors.Is(err, domain.ErrInvalidOption):
		b.ack(ctx, press, "Unknown option")
	default:
		b.ack(ctx, press, "")
		b.fail(ctx, press.ChatID, "submit answer", err)
	}
}

func (b *Bot) welcome(ctx context.Context, chatID string, from domain.Identity) {
	info, err := b.service.Welcome(ctx, from)
	if err != nil {
		b.fail(ctx, chatID, "welcome", err)
		return
	}
	b.send(ctx, chatID, welcomeText(info), welcomeButtons(info))
}

func (b *Bot) showLeaderboard(ctx context.Context, chatID string) {
	lb, err := b.service.Leaderboard(ctx)
	if err != nil {
		b.fail(ctx, chatID, "leaderboard", err)
		return
	}
	b.send(ctx, chatID, leaderboardText(lb), nil)
}

func (b *Bot) showReview(ctx context.Context, chatID, userID string) {
	review, err := b.service.Review(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "review", err)
		return
	}
	b.send(ctx, chatID, reviewText(review), nil)
}

// fail renders err as a user-visible message.
func (b *Bot) fail(ctx context.Context, chatID, op string, err error) {
	var text string
	switch {
	case errors.Is(err, domain.ErrNoActiveQuiz):
		text = noActiveQuizText
	case errors.Is(err, domain.ErrAlreadyAttempted):
		text = alreadyAttemptedText
	case errors.Is(err, domain.ErrSessionExpired):
		text = sessionExpiredText
	case errors.Is(err, domain.ErrResultNotFound):
		text = notTakenText
	case errors.Is(err, domain.ErrNotAdmin):
		text = adminOnlyText
	case errors.Is(err, domain.ErrRenderFailure):
		// the user already saw the state change or will on the next render
		b.log.Warn(op+" render failed", "chat", chatID, "error", err)
		return
	default:
		b.log.Error(op+" failed", "chat", chatID, "error", err)
		text = failureText
	}
	b.send(ctx, chatID, text, nil)
}

func (b *Bot) send(ctx context.Context, chatID, text string, buttons [][]Button) {
	if _, err := b.gateway.SendMessage(ctx, chatID, text, buttons); err != nil {
		b.log.Warn("send failed", "chat", chatID, "error", err)
	}
}

func (b *Bot) ack(ctx context.Context, press ButtonPress, notice string) {
	if err := b.gateway.AnswerButton(ctx, press.ChatID, press.ID, notice); err != nil {
		b.log.Debug("button ack failed", "chat", press.ChatID, "press", press.ID, "error", err)
	}
}
