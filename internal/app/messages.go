package app

import (
	"fmt"
	"strings"
	"time"

	"daily-quiz-bot/internal/domain"
)

const (
	noActiveQuizText     = "⚠️ No active quiz available right now. Please check back later!"
	alreadyAttemptedText = "You already took this quiz!"
	sessionExpiredText   = "⚠️ Quiz session expired. Please use /start to begin a new quiz."
	failureText          = "❌ Something went wrong. Please try again in a moment."
	adminOnlyText        = "⛔ This command is only available for admins."
	notTakenText         = "⚠️ You haven't taken this quiz yet!"
	clearUsageText       = "Usage: /clearuser <username>"
	helpText             = "Commands: /start, /leaderboard, /review"
)

func questionText(q domain.Question, index, total int, remaining time.Duration) string {
	secs := int((remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("📝 Question %d/%d\n\n%s\n\n⏱️ Time: %d seconds", index+1, total, q.Prompt, secs)
}

func answerButtons(index int, q domain.Question) [][]Button {
	rows := make([][]Button, 0, len(q.Options))
	for i, opt := range q.Options {
		rows = append(rows, []Button{{Text: opt, Data: domain.AnswerPayload(index, i)}})
	}
	return rows
}

func feedbackText(q domain.Question, option, index, total int) string {
	if option == q.Correct {
		return fmt.Sprintf("✅ Correct! (%d/%d)\n\n%s\n\n✓ %s", index+1, total, q.Prompt, q.Options[q.Correct])
	}
	return fmt.Sprintf("❌ Wrong! (%d/%d)\n\n%s\n\nYour answer: %s\nCorrect answer: ✓ %s",
		index+1, total, q.Prompt, q.Options[option], q.Options[q.Correct])
}

func timeoutText(q domain.Question, index, total int) string {
	return fmt.Sprintf("⏰ Time's Up! (%d/%d)\n\n%s\n\nCorrect answer: ✓ %s", index+1, total, q.Prompt, q.Options[q.Correct])
}

func summaryText(r domain.ResultRecord, total int, remark string) string {
	return fmt.Sprintf("🏁 Quiz Complete!\n\n%s\n\n📊 Your Results:\nScore: %d/%d\nTime: %d seconds",
		remark, r.Score, total, r.ElapsedSeconds)
}

func resultButtons() [][]Button {
	return [][]Button{
		{{Text: "📝 Review Your Answers", Data: domain.PayloadReviewAnswers}},
		{{Text: "🏆 View Leaderboard", Data: domain.PayloadLeaderboard}},
	}
}

func welcomeText(info WelcomeInfo) string {
	var b strings.Builder
	b.WriteString("🎯 ")
	if info.Quiz.Title != "" {
		b.WriteString(info.Quiz.Title)
	} else {
		b.WriteString("Daily Quiz")
	}
	fmt.Fprintf(&b, "\n\n⏰ Valid Until: %s\n\n", info.Quiz.ValidUntil)
	if info.CanStart() {
		b.WriteString("✨ Ready to begin?")
	} else {
		b.WriteString("✅ You have already taken this quiz!\nYou can review your answers.")
	}
	return b.String()
}

func welcomeButtons(info WelcomeInfo) [][]Button {
	first := Button{Text: "▶️ Start Quiz", Data: domain.PayloadStartQuiz}
	if !info.CanStart() {
		first = Button{Text: "📝 Review My Answers", Data: domain.PayloadReviewAnswers}
	}
	return [][]Button{{first}, {{Text: "🏆 View Leaderboard", Data: domain.PayloadLeaderboard}}}
}

func reviewText(r Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Your Quiz Review\n\n📊 Score: %d/%d\n⏱️ Time: %ds\n\n", r.Result.Score, len(r.Questions), r.Result.ElapsedSeconds)
	for i, q := range r.Questions {
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, q.Prompt)
		choice := domain.NoAnswer
		if i < len(r.Result.Answers) {
			choice = r.Result.Answers[i]
		}
		switch {
		case choice < 0 || choice >= len(q.Options):
			b.WriteString("⏰ Time's up - No answer\n")
		case choice == q.Correct:
			fmt.Fprintf(&b, "✅ Your answer: %s\n", q.Options[choice])
		default:
			fmt.Fprintf(&b, "❌ Your answer: %s\n✓ Correct: %s\n", q.Options[choice], q.Options[q.Correct])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func leaderboardText(lb domain.Leaderboard) string {
	if len(lb.Entries) == 0 {
		return "🏆 Leaderboard\n\nNo results yet. Be the first!"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Leaderboard - %s\n\n", lb.Period)
	for _, e := range lb.Entries {
		fmt.Fprintf(&b, "%s %s - %d/%d (%ds)\n", medal(e.Rank), e.Name, e.Score, lb.Total, e.ElapsedSeconds)
	}
	return b.String()
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}

func userListText(period string, results []domain.ResultRecord) string {
	if len(results) == 0 {
		return "No users found for current quiz."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Users in Quiz %s:\n\n", period)
	for i, r := range results {
		name := r.FirstName
		if name == "" {
			name = "N/A"
		}
		username := r.Username
		if username == "" {
			username = "unknown"
		}
		fmt.Fprintf(&b, "%d. @%s (%s) - Score: %d\n", i+1, username, name, r.Score)
	}
	return b.String()
}

func clearedText(username, period string) string {
	return fmt.Sprintf("✅ Cleared results for @%s from quiz %s", username, period)
}

func clearNotFoundText(username, period string) string {
	return fmt.Sprintf("⚠️ No results found for @%s in quiz %s\n\nUse /listusers to see all usernames.", username, period)
}
