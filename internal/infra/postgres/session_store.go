package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"daily-quiz-bot/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SessionStore is a Postgres implementation of app.Store. Session
// transitions are a conditional UPDATE on attempt and question index.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const resultColumns = `id, user_id, period, username, first_name, score, elapsed_seconds, answers, created_at`

func (s *SessionStore) HasAttempted(ctx context.Context, userID, period string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attempt_flags WHERE user_id=$1 AND period=$2)`, userID, period).Scan(&exists)
	if err != nil {
		return false, storageErr("has attempted", err)
	}
	return exists, nil
}

func (s *SessionStore) MarkAttempted(ctx context.Context, flag domain.AttemptFlag) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempt_flags (user_id, period, username, first_name) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, period) DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name`,
		flag.UserID, flag.Period, flag.Username, flag.FirstName)
	if err != nil {
		return storageErr("mark attempted", err)
	}
	return nil
}

func (s *SessionStore) AppendResult(ctx context.Context, r domain.ResultRecord) error {
	answers, err := encodeAnswers(r.Answers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO results (`+resultColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.UserID, r.Period, r.Username, r.FirstName, r.Score, r.ElapsedSeconds, answers, r.CreatedAt)
	if err != nil {
		return storageErr("append result", err)
	}
	return nil
}

func (s *SessionStore) GetResult(ctx context.Context, userID, period string) (domain.ResultRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM results
		WHERE user_id=$1 AND period=$2 ORDER BY created_at DESC, id DESC LIMIT 1`, userID, period)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ResultRecord{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.ResultRecord{}, storageErr("get result", err)
	}
	return r, nil
}

func (s *SessionStore) TopResults(ctx context.Context, period string, limit int) ([]domain.ResultRecord, error) {
	if limit <= 0 {
		return s.ListResults(ctx, period)
	}
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results WHERE period=$1
		ORDER BY score DESC, elapsed_seconds ASC, created_at ASC LIMIT $2`, period, limit)
}

func (s *SessionStore) ListResults(ctx context.Context, period string) ([]domain.ResultRecord, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results WHERE period=$1
		ORDER BY score DESC, elapsed_seconds ASC, created_at ASC`, period)
}

// normalizedUsername matches domain.NormalizeUsername: trim whitespace, drop
// one leading @, lowercase.
const normalizedUsername = `lower(regexp_replace(btrim(username, E' \t\n\r\v\f'), '^@', ''))`

func (s *SessionStore) DeleteUserResults(ctx context.Context, period, username string) (int, error) {
	target := domain.NormalizeUsername(username)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, storageErr("begin delete", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM results WHERE period=$1 AND `+normalizedUsername+`=$2`, period, target)
	if err != nil {
		return 0, storageErr("delete results", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM attempt_flags WHERE period=$1 AND `+normalizedUsername+`=$2`, period, target); err != nil {
		return 0, storageErr("delete flags", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("commit delete", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *SessionStore) CreateSession(ctx context.Context, state domain.SessionState) error {
	answers, err := encodeAnswers(state.Answers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (user_id, attempt_id, chat_id, period, current_question, score, started_at, question_started_at, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			attempt_id = EXCLUDED.attempt_id,
			chat_id = EXCLUDED.chat_id,
			period = EXCLUDED.period,
			current_question = EXCLUDED.current_question,
			score = EXCLUDED.score,
			started_at = EXCLUDED.started_at,
			question_started_at = EXCLUDED.question_started_at,
			answers = EXCLUDED.answers`,
		state.UserID, state.AttemptID, state.ChatID, state.Period, state.QuestionIndex, state.Score,
		state.StartedAt, state.QuestionStartedAt, answers)
	if err != nil {
		return storageErr("create session", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, userID string) (domain.SessionState, error) {
	var (
		state domain.SessionState
		raw   []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, attempt_id, chat_id, period, current_question, score, started_at, question_started_at, answers
		FROM sessions WHERE user_id=$1`, userID).Scan(
		&state.UserID, &state.AttemptID, &state.ChatID, &state.Period, &state.QuestionIndex, &state.Score,
		&state.StartedAt, &state.QuestionStartedAt, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionState{}, storageErr("get session", err)
	}
	if state.Answers, err = decodeAnswers(raw); err != nil {
		return domain.SessionState{}, err
	}
	return state, nil
}

func (s *SessionStore) UpdateSession(ctx context.Context, expectedIndex int, state domain.SessionState) error {
	answers, err := encodeAnswers(state.Answers)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET current_question=$1, score=$2, question_started_at=$3, answers=$4
		WHERE user_id=$5 AND attempt_id=$6 AND current_question=$7`,
		state.QuestionIndex, state.Score, state.QuestionStartedAt, answers,
		state.UserID, state.AttemptID, expectedIndex)
	if err != nil {
		return storageErr("update session", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := s.GetSession(ctx, state.UserID); err != nil {
		return err
	}
	return domain.ErrStaleSession
}

func (s *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id=$1`, userID); err != nil {
		return storageErr("delete session", err)
	}
	return nil
}

func (s *SessionStore) queryResults(ctx context.Context, query string, args ...interface{}) ([]domain.ResultRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query results", err)
	}
	defer rows.Close()

	results := []domain.ResultRecord{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, storageErr("scan result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query results", err)
	}
	return results, nil
}

func scanResult(row pgx.Row) (domain.ResultRecord, error) {
	var (
		r   domain.ResultRecord
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Period, &r.Username, &r.FirstName, &r.Score, &r.ElapsedSeconds, &raw, &r.CreatedAt); err != nil {
		return domain.ResultRecord{}, err
	}
	answers, err := decodeAnswers(raw)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	r.Answers = answers
	return r, nil
}

func encodeAnswers(answers []int) (string, error) {
	if answers == nil {
		answers = []int{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", storageErr("encode answers", err)
	}
	return string(data), nil
}

func decodeAnswers(raw []byte) ([]int, error) {
	answers := []int{}
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, storageErr("decode answers", err)
	}
	return answers, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("postgres %s: %w: %w", op, domain.ErrStorageFailure, err)
}
