package memory

import (
	"context"
	"sync"

	"daily-quiz-bot/internal/domain"
)

// SessionStore is an in-memory implementation of app.Store.
type SessionStore struct {
	mu       sync.RWMutex
	flags    map[flagKey]domain.AttemptFlag
	results  map[string][]domain.ResultRecord
	sessions map[string]domain.SessionState
}

type flagKey struct {
	userID string
	period string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		flags:    make(map[flagKey]domain.AttemptFlag),
		results:  make(map[string][]domain.ResultRecord),
		sessions: make(map[string]domain.SessionState),
	}
}

func (s *SessionStore) HasAttempted(_ context.Context, userID, period string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[flagKey{userID, period}]
	return ok, nil
}

func (s *SessionStore) MarkAttempted(_ context.Context, flag domain.AttemptFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flagKey{flag.UserID, flag.Period}] = flag
	return nil
}

func (s *SessionStore) AppendResult(_ context.Context, result domain.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result.Answers = cloneAnswers(result.Answers)
	s.results[result.Period] = append(s.results[result.Period], result)
	return nil
}

func (s *SessionStore) GetResult(_ context.Context, userID, period string) (domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.results[period]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].UserID == userID {
			r := records[i]
			r.Answers = cloneAnswers(r.Answers)
			return r, nil
		}
	}
	return domain.ResultRecord{}, domain.ErrResultNotFound
}

func (s *SessionStore) TopResults(ctx context.Context, period string, limit int) ([]domain.ResultRecord, error) {
	all, err := s.ListResults(ctx, period)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *SessionStore) ListResults(_ context.Context, period string) ([]domain.ResultRecord, error) {
	s.mu.RLock()
	records := s.results[period]
	out := make([]domain.ResultRecord, len(records))
	for i, r := range records {
		r.Answers = cloneAnswers(r.Answers)
		out[i] = r
	}
	s.mu.RUnlock()

	domain.SortResults(out)
	return out, nil
}

func (s *SessionStore) DeleteUserResults(_ context.Context, period, username string) (int, error) {
	target := domain.NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.results[period][:0:0]
	removed := 0
	for _, r := range s.results[period] {
		if domain.NormalizeUsername(r.Username) == target {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.results[period] = kept

	for key, flag := range s.flags {
		if key.period == period && domain.NormalizeUsername(flag.Username) == target {
			delete(s.flags, key)
		}
	}
	return removed, nil
}

func (s *SessionStore) CreateSession(_ context.Context, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Answers = cloneAnswers(state.Answers)
	s.sessions[state.UserID] = state
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, userID string) (domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[userID]
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	state.Answers = cloneAnswers(state.Answers)
	return state, nil
}

func (s *SessionStore) UpdateSession(_ context.Context, expectedIndex int, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[state.UserID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if current.AttemptID != state.AttemptID || current.QuestionIndex != expectedIndex {
		return domain.ErrStaleSession
	}
	state.Answers = cloneAnswers(state.Answers)
	s.sessions[state.UserID] = state
	return nil
}

func (s *SessionStore) DeleteSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func cloneAnswers(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	return out
}
