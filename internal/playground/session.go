package playground

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prpm-dev/registry/internal/models"
)

// ErrSessionNotFound is returned when a session id does not exist or does
// not belong to the requesting user.
var ErrSessionNotFound = errors.New("playground session not found")

// SessionStore persists playground sessions. The conversation lives in a
// JSON column; counters are bumped in the same statement that appends so a
// session can never show a run without its cost.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create starts a fresh session for a user's first run against a package.
func (s *SessionStore) Create(ctx context.Context, userID, packageID int64) (*models.PlaygroundSession, error) {
	sess := &models.PlaygroundSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		PackageID:    packageID,
		Conversation: []models.Message{},
		CreatedAt:    time.Now(),
	}

	query := `
		INSERT INTO playground_sessions
		(id, user_id, package_id, conversation, credits_spent, run_count, created_at)
		VALUES (?, ?, ?, '[]', 0, 0, ?)`

	if _, err := s.db.ExecContext(ctx, query, sess.ID, userID, packageID, sess.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Get loads a session, scoped to its owner.
func (s *SessionStore) Get(ctx context.Context, id string, userID int64) (*models.PlaygroundSession, error) {
	sess := &models.PlaygroundSession{}
	var conversation []byte
	var lastRunAt sql.NullTime

	query := `
		SELECT id, user_id, package_id, conversation, credits_spent, run_count, last_run_at, created_at
		FROM playground_sessions
		WHERE id = ? AND user_id = ?`

	err := s.db.QueryRowContext(ctx, query, id, userID).Scan(
		&sess.ID, &sess.UserID, &sess.PackageID, &conversation,
		&sess.CreditsSpent, &sess.RunCount, &lastRunAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := json.Unmarshal(conversation, &sess.Conversation); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if lastRunAt.Valid {
		sess.LastRunAt = lastRunAt.Time
	}
	return sess, nil
}

// RecordRun appends one user/assistant exchange and bumps the counters.
// credits_spent only ever grows.
func (s *SessionStore) RecordRun(ctx context.Context, sess *models.PlaygroundSession, userMsg, assistantMsg models.Message, cost int) error {
	sess.Conversation = append(sess.Conversation, userMsg, assistantMsg)
	sess.CreditsSpent += cost
	sess.RunCount++
	sess.LastRunAt = time.Now()

	conversation, err := json.Marshal(sess.Conversation)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	query := `
		UPDATE playground_sessions
		SET conversation = ?, credits_spent = credits_spent + ?, run_count = run_count + 1, last_run_at = ?
		WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, conversation, cost, sess.LastRunAt, sess.ID); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// List returns a user's sessions, most recently used first. Conversations
// are included; the client trims for display.
func (s *SessionStore) List(ctx context.Context, userID int64) ([]models.PlaygroundSession, error) {
	query := `
		SELECT id, user_id, package_id, conversation, credits_spent, run_count, last_run_at, created_at
		FROM playground_sessions
		WHERE user_id = ?
		ORDER BY COALESCE(last_run_at, created_at) DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.PlaygroundSession{}
	for rows.Next() {
		var sess models.PlaygroundSession
		var conversation []byte
		var lastRunAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.PackageID, &conversation,
			&sess.CreditsSpent, &sess.RunCount, &lastRunAt, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if err := json.Unmarshal(conversation, &sess.Conversation); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		if lastRunAt.Valid {
			sess.LastRunAt = lastRunAt.Time
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session. Only the owner can delete; anything else is a
// not-found.
func (s *SessionStore) Delete(ctx context.Context, id string, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM playground_sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}
