package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"daily-quiz-bot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis implementation of app.Store.
// Layout:
//
//	quiz:session:{userID}      JSON SessionState (optional TTL)
//	quiz:{period}:attempted    HASH userID -> JSON AttemptFlag
//	quiz:{period}:results      LIST of JSON ResultRecord, append order
//
// Session transitions are compare-and-swap via WATCH/MULTI.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore returns a store; ttl bounds abandoned sessions (0 keeps them).
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) HasAttempted(ctx context.Context, userID, period string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.flagsKey(period), userID).Result()
	if err != nil {
		return false, storageErr("has attempted", err)
	}
	return ok, nil
}

func (s *SessionStore) MarkAttempted(ctx context.Context, flag domain.AttemptFlag) error {
	data, err := json.Marshal(flag)
	if err != nil {
		return storageErr("encode flag", err)
	}
	if err := s.client.HSet(ctx, s.flagsKey(flag.Period), flag.UserID, data).Err(); err != nil {
		return storageErr("mark attempted", err)
	}
	return nil
}

func (s *SessionStore) AppendResult(ctx context.Context, result domain.ResultRecord) error {
	data, err := json.Marshal(result)
	if err != nil {
		return storageErr("encode result", err)
	}
	if err := s.client.RPush(ctx, s.resultsKey(result.Period), data).Err(); err != nil {
		return storageErr("append result", err)
	}
	return nil
}

func (s *SessionStore) GetResult(ctx context.Context, userID, period string) (domain.ResultRecord, error) {
	results, _, err := s.loadResults(ctx, s.client, period)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].UserID == userID {
			return results[i], nil
		}
	}
	return domain.ResultRecord{}, domain.ErrResultNotFound
}

func (s *SessionStore) TopResults(ctx context.Context, period string, limit int) ([]domain.ResultRecord, error) {
	results, err := s.ListResults(ctx, period)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SessionStore) ListResults(ctx context.Context, period string) ([]domain.ResultRecord, error) {
	results, _, err := s.loadResults(ctx, s.client, period)
	if err != nil {
		return nil, err
	}
	domain.SortResults(results)
	return results, nil
}

func (s *SessionStore) DeleteUserResults(ctx context.Context, period, username string) (int, error) {
	target := domain.NormalizeUsername(username)
	resultsKey, flagsKey := s.resultsKey(period), s.flagsKey(period)
	removed := 0

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		results, raws, err := s.loadResults(ctx, tx, period)
		if err != nil {
			return err
		}
		var drop []string
		for i, r := range results {
			if domain.NormalizeUsername(r.Username) == target {
				drop = append(drop, raws[i])
			}
		}

		flags, err := tx.HGetAll(ctx, flagsKey).Result()
		if err != nil {
			return storageErr("load flags", err)
		}
		var dropFlags []string
		for userID, raw := range flags {
			var flag domain.AttemptFlag
			if err := json.Unmarshal([]byte(raw), &flag); err != nil {
				continue
			}
			if domain.NormalizeUsername(flag.Username) == target {
				dropFlags = append(dropFlags, userID)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, raw := range drop {
				pipe.LRem(ctx, resultsKey, 1, raw)
			}
			if len(dropFlags) > 0 {
				pipe.HDel(ctx, flagsKey, dropFlags...)
			}
			return nil
		})
		if err != nil {
			return storageErr("delete user results", err)
		}
		removed = len(drop)
		return nil
	}, resultsKey, flagsKey)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, storageErr("delete user results", err)
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *SessionStore) CreateSession(ctx context.Context, state domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return storageErr("encode session", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(state.UserID), data, s.ttl).Err(); err != nil {
		return storageErr("create session", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, userID string) (domain.SessionState, error) {
	return s.getSession(ctx, s.client, userID)
}

func (s *SessionStore) UpdateSession(ctx context.Context, expectedIndex int, state domain.SessionState) error {
	key := s.sessionKey(state.UserID)
	data, err := json.Marshal(state)
	if err != nil {
		return storageErr("encode session", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.getSession(ctx, tx, state.UserID)
		if err != nil {
			return err
		}
		if current.AttemptID != state.AttemptID || current.QuestionIndex != expectedIndex {
			return domain.ErrStaleSession
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrStaleSession
	case errors.Is(err, domain.ErrStaleSession), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrStorageFailure):
		return err
	default:
		return storageErr("update session", err)
	}
}

func (s *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.sessionKey(userID)).Err(); err != nil {
		return storageErr("delete session", err)
	}
	return nil
}

func (s *SessionStore) getSession(ctx context.Context, c reader, userID string) (domain.SessionState, error) {
	raw, err := c.Get(ctx, s.sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionState{}, storageErr("get session", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, storageErr("decode session", err)
	}
	if state.Answers == nil {
		state.Answers = []int{}
	}
	return state, nil
}

// loadResults returns the decoded results with their raw encodings.
func (s *SessionStore) loadResults(ctx context.Context, c reader, period string) ([]domain.ResultRecord, []string, error) {
	raws, err := c.LRange(ctx, s.resultsKey(period), 0, -1).Result()
	if err != nil {
		return nil, nil, storageErr("load results", err)
	}
	results := make([]domain.ResultRecord, 0, len(raws))
	kept := make([]string, 0, len(raws))
	for _, raw := range raws {
		var r domain.ResultRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, nil, storageErr("decode result", err)
		}
		results = append(results, r)
		kept = append(kept, raw)
	}
	return results, kept, nil
}

// reader is the read subset shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func (s *SessionStore) sessionKey(userID string) string {
	return "quiz:session:" + userID
}

func (s *SessionStore) flagsKey(period string) string {
	return "quiz:" + period + ":attempted"
}

func (s *SessionStore) resultsKey(period string) string {
	return "quiz:" + period + ":results"
}

func storageErr(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, domain.ErrStorageFailure, err)
}
