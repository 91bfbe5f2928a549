package sqlite

import (
	"context"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

const sessionColumns = `id, name, description, is_active, created_at, last_activity`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*entities.Session, error) {
	var (
		sess                    entities.Session
		createdAt, lastActivity int64
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Description, &sess.IsActive, &createdAt, &lastActivity); err != nil {
		return nil, err
	}
	sess.CreatedAt = fromMicros(createdAt)
	sess.LastActivity = fromMicros(lastActivity)
	return &sess, nil
}

// Create inserts a new session
func (s *Store) Create(ctx context.Context, session *entities.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, session.ID, session.Name, session.Description, session.IsActive,
		toMicros(session.CreatedAt), toMicros(session.LastActivity))
	if err != nil {
		return storageErr("create session", err)
	}
	return nil
}

// Get returns one session
func (s *Store) Get(ctx context.Context, id string) (*entities.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if isNoRows(err) {
		return nil, notFound("session", id)
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return sess, nil
}

// List returns sessions ordered by last activity, newest first
func (s *Store) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*entities.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY last_activity DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	defer rows.Close()

	sessions := []*entities.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storageErr("scan session", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

// Update persists name and description and bumps last activity
func (s *Store) Update(ctx context.Context, session *entities.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET name = ?, description = ?, last_activity = ? WHERE id = ?
	`, session.Name, session.Description, toMicros(time.Now()), session.ID)
	if err != nil {
		return storageErr("update session", err)
	}
	return checkAffected(res, "session", session.ID)
}

// Touch sets last activity to now
func (s *Store) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE id = ?`, toMicros(time.Now()), id)
	if err != nil {
		return storageErr("touch session", err)
	}
	return checkAffected(res, "session", id)
}

// SetActive activates or deactivates a session
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = ?, last_activity = ? WHERE id = ?
	`, active, toMicros(time.Now()), id)
	if err != nil {
		return storageErr("set session active", err)
	}
	return checkAffected(res, "session", id)
}
