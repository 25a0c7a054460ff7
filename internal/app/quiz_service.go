package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"daily-quiz-bot/internal/clock"
	"daily-quiz-bot/internal/domain"
	"daily-quiz-bot/internal/logger"
	"github.com/google/uuid"
	"github.com/moby/locker"
)

const (
	defaultQuestionTime    = 60 * time.Second
	defaultRefreshInterval = 5 * time.Second
	defaultFeedbackDelay   = 2 * time.Second
	defaultLeaderboardSize = 10
	finishRetryDelay       = 30 * time.Second

	// timer callbacks run detached from any request
	callbackTimeout = 10 * time.Second
)

// Options tunes the quiz flow. Zero values fall back to the defaults.
type Options struct {
	QuestionTime    time.Duration
	RefreshInterval time.Duration
	FeedbackDelay   time.Duration
	LeaderboardSize int
	// Admins are usernames exempt from the one-attempt rule.
	Admins []string
	Bands  []Band
	Clock  clock.Clock
	Logger *logger.Logger
}

// QuizService runs the per-user quiz state machine.
type QuizService struct {
	store   Store
	quizzes QuizCatalog
	gateway Gateway
	timers  *Timers
	clock   clock.Clock
	log     *logger.Logger

	questionTime    time.Duration
	refreshInterval time.Duration
	feedbackDelay   time.Duration
	leaderboardSize int
	admins          map[string]struct{}
	bands           []Band

	locks *locker.Locker
	newID func() string
}

func NewQuizService(store Store, quizzes QuizCatalog, gateway Gateway, timers *Timers, opts Options) (*QuizService, error) {
	bands := opts.Bands
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	if err := ValidateBands(bands); err != nil {
		return nil, err
	}
	s := &QuizService{
		store:           store,
		quizzes:         quizzes,
		gateway:         gateway,
		timers:          timers,
		clock:           opts.Clock,
		log:             opts.Logger,
		questionTime:    opts.QuestionTime,
		refreshInterval: opts.RefreshInterval,
		feedbackDelay:   opts.FeedbackDelay,
		leaderboardSize: opts.LeaderboardSize,
		admins:          make(map[string]struct{}, len(opts.Admins)),
		bands:           bands,
		locks:           locker.New(),
		newID:           func() string { return uuid.NewString() },
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.questionTime <= 0 {
		s.questionTime = defaultQuestionTime
	}
	if s.refreshInterval <= 0 {
		s.refreshInterval = defaultRefreshInterval
	}
	if s.feedbackDelay <= 0 {
		s.feedbackDelay = defaultFeedbackDelay
	}
	if s.leaderboardSize <= 0 {
		s.leaderboardSize = defaultLeaderboardSize
	}
	for _, name := range opts.Admins {
		if n := domain.NormalizeUsername(name); n != "" {
			s.admins[n] = struct{}{}
		}
	}
	return s, nil
}

// IsAdmin reports whether the identity is on the admin allow-list.
func (s *QuizService) IsAdmin(id domain.Identity) bool {
	if id.Username == "" {
		return false
	}
	_, ok := s.admins[domain.NormalizeUsername(id.Username)]
	return ok
}

// WelcomeInfo is what the start screen needs to know about a user.
type WelcomeInfo struct {
	Quiz      domain.QuizDefinition
	Attempted bool
	Admin     bool
}

// CanStart reports whether the start button should be offered.
func (w WelcomeInfo) CanStart() bool {
	return !w.Attempted || w.Admin
}

// Welcome describes the current quiz from the user's point of view.
func (s *QuizService) Welcome(ctx context.Context, id domain.Identity) (WelcomeInfo, error) {
	period, err := s.quizzes.CurrentPeriod(ctx, s.clock.Now())
	if err != nil {
		return WelcomeInfo{}, err
	}
	def, err := s.quizzes.Definition(ctx, period)
	if err != nil {
		return WelcomeInfo{}, err
	}
	attempted, err := s.store.HasAttempted(ctx, id.UserID, period)
	if err != nil {
		return WelcomeInfo{}, err
	}
	return WelcomeInfo{Quiz: def, Attempted: attempted, Admin: s.IsAdmin(id)}, nil
}

// StartAttempt opens a new session for the current period and presents the
// first question. A second start overwrites the first session and abandons
// its timers; double taps are not deduplicated here.
func (s *QuizService) StartAttempt(ctx context.Context, id domain.Identity, chatID string) (domain.SessionState, error) {
	period, err := s.quizzes.CurrentPeriod(ctx, s.clock.Now())
	if err != nil {
		return domain.SessionState{}, err
	}
	if !s.IsAdmin(id) {
		attempted, err := s.store.HasAttempted(ctx, id.UserID, period)
		if err != nil {
			return domain.SessionState{}, err
		}
		if attempted {
			return domain.SessionState{}, domain.ErrAlreadyAttempted
		}
	}
	questions, err := s.quizzes.QuestionsFor(ctx, period)
	if err != nil {
		return domain.SessionState{}, err
	}
	if len(questions) == 0 {
		return domain.SessionState{}, domain.ErrNoActiveQuiz
	}

	unlock := s.lockUser(id.UserID)
	now := s.clock.Now()
	state := domain.SessionState{
		AttemptID:         s.newID(),
		UserID:            id.UserID,
		ChatID:            chatID,
		Period:            period,
		StartedAt:         now,
		QuestionStartedAt: now,
		Answers:           []int{},
	}
	err = s.store.CreateSession(ctx, state)
	if err == nil {
		s.timers.Cancel(id.UserID)
	}
	unlock()
	if err != nil {
		return domain.SessionState{}, err
	}

	s.log.Info("quiz started", "user", id.UserID, "period", period, "attempt", state.AttemptID)
	return state, s.presentQuestion(ctx, state, questions, 0)
}

// AnswerOutcome is the result of a successful SubmitAnswer.
type AnswerOutcome struct {
	Correct bool
	Score   int
	Next    int
}

// SubmitAnswer records optionIndex for questionIndex. It returns
// domain.ErrSessionExpired when the user has no session and
// domain.ErrAlreadyAdvanced when the question was already answered or timed out.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID, messageRef string, questionIndex, optionIndex int) (AnswerOutcome, error) {
	unlock := s.lockUser(userID)
	state, err := s.store.GetSession(ctx, userID)
	if err != nil {
		unlock()
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.timers.Cancel(userID)
			return AnswerOutcome{}, domain.ErrSessionExpired
		}
		return AnswerOutcome{}, err
	}
	if state.QuestionIndex != questionIndex {
		unlock()
		return AnswerOutcome{}, domain.ErrAlreadyAdvanced
	}
	question, total, err := s.question(ctx, state.Period, questionIndex)
	if err != nil {
		unlock()
		return AnswerOutcome{}, err
	}
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		unlock()
		return AnswerOutcome{}, domain.ErrInvalidOption
	}

	correct := optionIndex == question.Correct
	next := advance(state, optionIndex, correct, s.clock.Now())
	if err := s.commit(ctx, state, next); err != nil {
		unlock()
		return AnswerOutcome{}, err
	}
	s.scheduleAdvance(next)
	unlock()

	outcome := AnswerOutcome{Correct: correct, Score: next.Score, Next: next.QuestionIndex}
	if err := s.gateway.EditMessage(ctx, state.ChatID, messageRef, feedbackText(question, optionIndex, questionIndex, total), nil); err != nil {
		return outcome, fmt.Errorf("render feedback: %w", err)
	}
	return outcome, nil
}

// QuestionRef pins a timeout to the question message that was presented.
type QuestionRef struct {
	UserID        string
	ChatID        string
	AttemptID     string
	QuestionIndex int
	MessageRef    string
}

// HandleTimeout records a missed answer for ref. The score is untouched.
func (s *QuizService) HandleTimeout(ctx context.Context, ref QuestionRef) error {
	unlock := s.lockUser(ref.UserID)
	state, err := s.store.GetSession(ctx, ref.UserID)
	if err != nil {
		unlock()
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.timers.Cancel(ref.UserID)
			s.edit(ctx, ref.ChatID, ref.MessageRef, sessionExpiredText, nil)
			return domain.ErrSessionExpired
		}
		return err
	}
	if state.AttemptID != ref.AttemptID || state.QuestionIndex != ref.QuestionIndex {
		unlock()
		return domain.ErrAlreadyAdvanced
	}
	question, total, err := s.question(ctx, state.Period, ref.QuestionIndex)
	if err != nil {
		unlock()
		return err
	}

	next := advance(state, domain.NoAnswer, false, s.clock.Now())
	if err := s.commit(ctx, state, next); err != nil {
		unlock()
		return err
	}
	s.scheduleAdvance(next)
	unlock()

	s.log.Debug("question timed out", "user", ref.UserID, "question", ref.QuestionIndex)
	if err := s.gateway.EditMessage(ctx, ref.ChatID, ref.MessageRef, timeoutText(question, ref.QuestionIndex, total), nil); err != nil {
		return fmt.Errorf("render timeout: %w", err)
	}
	return nil
}

// AdvanceOrFinish presents question next, or finalizes the attempt once every
// question has been played. It no-ops with domain.ErrAlreadyAdvanced when the
// session has moved on or was replaced.
func (s *QuizService) AdvanceOrFinish(ctx context.Context, userID, attemptID string, next int) error {
	state, err := s.store.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrSessionExpired
		}
		return err
	}
	if state.AttemptID != attemptID || state.QuestionIndex != next {
		return domain.ErrAlreadyAdvanced
	}
	questions, err := s.quizzes.QuestionsFor(ctx, state.Period)
	if err != nil {
		return err
	}
	if next >= len(questions) {
		_, err := s.FinishAttempt(ctx, userID, attemptID)
		return err
	}
	return s.presentQuestion(ctx, state, questions, next)
}

// FinishAttempt finalizes the session into a result and an attempt flag.
// A storage failure keeps the session and retries the finish later.
func (s *QuizService) FinishAttempt(ctx context.Context, userID, attemptID string) (domain.ResultRecord, error) {
	unlock := s.lockUser(userID)
	state, err := s.store.GetSession(ctx, userID)
	if err != nil {
		unlock()
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ResultRecord{}, domain.ErrSessionExpired
		}
		return domain.ResultRecord{}, err
	}
	if state.AttemptID != attemptID {
		unlock()
		return domain.ResultRecord{}, domain.ErrAlreadyAdvanced
	}

	now := s.clock.Now()
	elapsed := int(now.Sub(state.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	id := s.lookupIdentity(ctx, userID)
	answers := make([]int, len(state.Answers))
	copy(answers, state.Answers)
	result := domain.ResultRecord{
		// keyed by attempt so a retried finish finds its own result
		ID:             state.AttemptID,
		UserID:         userID,
		Period:         state.Period,
		Username:       id.Username,
		FirstName:      id.FirstName,
		Score:          state.Score,
		ElapsedSeconds: elapsed,
		Answers:        answers,
		CreatedAt:      now,
	}

	result, err = s.recordResult(ctx, result)
	if err == nil {
		err = s.store.MarkAttempted(ctx, domain.AttemptFlag{
			UserID:    userID,
			Period:    state.Period,
			Username:  id.Username,
			FirstName: id.FirstName,
		})
	}
	if err == nil {
		err = s.store.DeleteSession(ctx, userID)
	}
	if err != nil {
		s.scheduleFinishRetry(state)
		unlock()
		return domain.ResultRecord{}, err
	}
	s.timers.Cancel(userID)
	unlock()

	s.log.Info("quiz finished", "user", userID, "period", state.Period, "score", result.Score, "elapsed", elapsed)
	total := len(answers)
	if questions, err := s.quizzes.QuestionsFor(ctx, state.Period); err == nil {
		total = len(questions)
	}
	if _, err := s.gateway.SendMessage(ctx, state.ChatID, summaryText(result, total, BandFor(s.bands, result.Score)), resultButtons()); err != nil {
		return result, fmt.Errorf("render summary: %w", err)
	}
	return result, nil
}

// Review is a user's finished attempt alongside the quiz it answered.
type Review struct {
	Result    domain.ResultRecord
	Questions []domain.Question
}

// Review returns the user's latest result for the current period.
func (s *QuizService) Review(ctx context.Context, userID string) (Review, error) {
	period, err := s.quizzes.CurrentPeriod(ctx, s.clock.Now())
	if err != nil {
		return Review{}, err
	}
	result, err := s.store.GetResult(ctx, userID, period)
	if err != nil {
		return Review{}, err
	}
	questions, err := s.quizzes.QuestionsFor(ctx, period)
	if err != nil {
		return Review{}, err
	}
	return Review{Result: result, Questions: questions}, nil
}

// Leaderboard projects the top results of the current period.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	period, err := s.quizzes.CurrentPeriod(ctx, s.clock.Now())
	if err != nil {
		return domain.Leaderboard{}, err
	}
	questions, err := s.quizzes.QuestionsFor(ctx, period)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	results, err := s.store.TopResults(ctx, period, s.leaderboardSize)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for i, r := range results {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:           i + 1,
			UserID:         r.UserID,
			Name:           r.DisplayName(),
			Score:          r.Score,
			ElapsedSeconds: r.ElapsedSeconds,
		})
	}
	return domain.Leaderboard{Period: period, Total: len(questions), Entries: entries}, nil
}

// ListResults returns every result of the current period. Admin only.
func (s *QuizService) ListResults(ctx context.Context, caller domain.Identity) (string, []domain.ResultRecord, error) {
	if !s.IsAdmin(caller) {
		return "", nil, domain.ErrNotAdmin
	}
	period, err := s.quizzes.CurrentPeriod(ctx, s.clock.Now())
	if err != nil {
		return "", nil, err
	}
	results, err := s.store.ListResults(ctx, period)
	if err != nil {
		return "", nil, err
	}
	return period, results, nil
}

// ClearUser removes a user's results and attempt flag for the current period
// so they can take the quiz again. Admin only.
func (s *QuizService) ClearUser(ctx context.Context, caller domain.Identity, username string) (string, error) {
	if !s.IsAdmin(caller) {
		return "", domain.ErrNotAdmin
	}
	period, err := s.quizzes.CurrentPeriod(ctx, s.clock.Now())
	if err != nil {
		return "", err
	}
	removed, err := s.store.DeleteUserResults(ctx, period, username)
	if err != nil {
		return period, err
	}
	if removed == 0 {
		return period, domain.ErrUserNotFound
	}
	s.log.Info("user results cleared", "admin", caller.Username, "target", strings.TrimPrefix(username, "@"), "period", period, "removed", removed)
	return period, nil
}

// Close cancels every pending timer.
func (s *QuizService) Close() {
	s.timers.Stop()
}

func (s *QuizService) presentQuestion(ctx context.Context, state domain.SessionState, questions []domain.Question, index int) error {
	question := questions[index]
	total := len(questions)
	buttons := answerButtons(index, question)

	ref, err := s.gateway.SendMessage(ctx, state.ChatID, questionText(question, index, total, s.questionTime), buttons)
	if err != nil {
		return fmt.Errorf("render question: %w", err)
	}

	qref := QuestionRef{
		UserID:        state.UserID,
		ChatID:        state.ChatID,
		AttemptID:     state.AttemptID,
		QuestionIndex: index,
		MessageRef:    ref,
	}

	// The question is visible from here on, so an answer may already have
	// moved the session and scheduled its own advance.
	unlock := s.lockUser(state.UserID)
	defer unlock()
	cur, err := s.store.GetSession(ctx, state.UserID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return domain.ErrSessionExpired
	case err != nil:
		return err
	}
	if cur.AttemptID != state.AttemptID || cur.QuestionIndex != index {
		s.log.Debug("question moved on before its timer started", "user", state.UserID, "question", index)
		return nil
	}
	s.timers.StartQuestion(state.UserID, QuestionTimer{
		Budget: s.questionTime,
		Every:  s.refreshInterval,
		OnRefresh: func(remaining time.Duration) error {
			ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
			defer cancel()
			return s.gateway.EditMessage(ctx, qref.ChatID, qref.MessageRef, questionText(question, index, total, remaining), buttons)
		},
		OnTimeout: func() {
			ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
			defer cancel()
			s.report(ctx, qref.ChatID, "handle timeout", s.HandleTimeout(ctx, qref))
		},
	})
	return nil
}

func (s *QuizService) scheduleAdvance(state domain.SessionState) {
	userID, chatID, attemptID, next := state.UserID, state.ChatID, state.AttemptID, state.QuestionIndex
	s.timers.After(userID, s.feedbackDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		s.report(ctx, chatID, "advance", s.AdvanceOrFinish(ctx, userID, attemptID, next))
	})
}

// recordResult appends result unless an earlier finish of the same attempt
// already stored it.
func (s *QuizService) recordResult(ctx context.Context, result domain.ResultRecord) (domain.ResultRecord, error) {
	latest, err := s.store.GetResult(ctx, result.UserID, result.Period)
	switch {
	case err == nil && latest.ID == result.ID:
		return latest, nil
	case err != nil && !errors.Is(err, domain.ErrResultNotFound):
		return domain.ResultRecord{}, err
	}
	if err := s.store.AppendResult(ctx, result); err != nil {
		return domain.ResultRecord{}, err
	}
	return result, nil
}

func (s *QuizService) scheduleFinishRetry(state domain.SessionState) {
	userID, attemptID, next := state.UserID, state.AttemptID, state.QuestionIndex
	s.timers.After(userID, finishRetryDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		err := s.AdvanceOrFinish(ctx, userID, attemptID, next)
		switch {
		case err == nil, errors.Is(err, domain.ErrAlreadyAdvanced), errors.Is(err, domain.ErrSessionExpired):
		default:
			s.log.Warn("finish retry failed", "user", userID, "attempt", attemptID, "error", err)
		}
	})
}

// report handles errors of transitions that no request is waiting on.
func (s *QuizService) report(ctx context.Context, chatID, op string, err error) {
	switch {
	case err == nil, errors.Is(err, domain.ErrAlreadyAdvanced), errors.Is(err, domain.ErrSessionExpired):
	case errors.Is(err, domain.ErrRenderFailure):
		s.log.Warn(op+" render failed", "chat", chatID, "error", err)
	default:
		s.log.Error(op+" failed", "chat", chatID, "error", err)
		if _, sendErr := s.gateway.SendMessage(ctx, chatID, failureText, nil); sendErr != nil {
			s.log.Warn("failure notice not delivered", "chat", chatID, "error", sendErr)
		}
	}
}

func (s *QuizService) edit(ctx context.Context, chatID, messageRef, text string, buttons [][]Button) {
	if err := s.gateway.EditMessage(ctx, chatID, messageRef, text, buttons); err != nil {
		s.log.Warn("edit failed", "chat", chatID, "error", err)
	}
}

// commit persists next if state is still the stored session.
func (s *QuizService) commit(ctx context.Context, state, next domain.SessionState) error {
	err := s.store.UpdateSession(ctx, state.QuestionIndex, next)
	switch {
	case errors.Is(err, domain.ErrStaleSession):
		return domain.ErrAlreadyAdvanced
	case errors.Is(err, domain.ErrSessionNotFound):
		return domain.ErrSessionExpired
	case err != nil:
		return err
	}
	s.timers.Cancel(state.UserID)
	return nil
}

func (s *QuizService) question(ctx context.Context, period string, index int) (domain.Question, int, error) {
	questions, err := s.quizzes.QuestionsFor(ctx, period)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if index < 0 || index >= len(questions) {
		return domain.Question{}, 0, fmt.Errorf("question %d of %s: %w", index, period, domain.ErrQuizNotFound)
	}
	return questions[index], len(questions), nil
}

func (s *QuizService) lookupIdentity(ctx context.Context, userID string) domain.Identity {
	id, err := s.gateway.LookupIdentity(ctx, userID)
	if err != nil {
		s.log.Debug("identity lookup failed", "user", userID, "error", err)
		id = domain.Identity{UserID: userID}
	}
	if id.Username == "" {
		id.Username = "Unknown"
	}
	if id.FirstName == "" {
		id.FirstName = "User"
	}
	return id
}

// advance returns the session after one transition recording answer.
func advance(state domain.SessionState, answer int, correct bool, now time.Time) domain.SessionState {
	next := state
	next.Answers = make([]int, len(state.Answers), len(state.Answers)+1)
	copy(next.Answers, state.Answers)
	next.Answers = append(next.Answers, answer)
	next.QuestionIndex = state.QuestionIndex + 1
	if correct {
		next.Score = state.Score + 1
	}
	next.QuestionStartedAt = now
	return next
}
