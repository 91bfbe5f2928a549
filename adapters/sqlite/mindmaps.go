package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

const mindMapColumns = `id, session_id, nodes, edges, prompt, model, processing_time, created_at`

func scanMindMap(row rowScanner) (*entities.MindMap, error) {
	var (
		m            entities.MindMap
		nodes, edges string
		createdAt    int64
	)
	if err := row.Scan(&m.ID, &m.SessionID, &nodes, &edges, &m.Prompt, &m.Model,
		&m.ProcessingTime, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nodes), &m.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edges), &m.Edges); err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	m.CreatedAt = fromMicros(createdAt)
	return &m, nil
}

// CreateMindMap inserts a complete mind map and sets its id
func (s *Store) CreateMindMap(ctx context.Context, m *entities.MindMap) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	nodes, err := json.Marshal(m.Nodes)
	if err != nil {
		return fmt.Errorf("encode nodes: %w", err)
	}
	edges, err := json.Marshal(m.Edges)
	if err != nil {
		return fmt.Errorf("encode edges: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mind_maps (session_id, nodes, edges, prompt, model, processing_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.SessionID, string(nodes), string(edges), m.Prompt, m.Model, m.ProcessingTime, toMicros(m.CreatedAt))
	if err != nil {
		return storageErr("create mind map", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("mind map id", err)
	}
	m.ID = id
	return nil
}

// GetMindMap returns one mind map
func (s *Store) GetMindMap(ctx context.Context, id int64) (*entities.MindMap, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mindMapColumns+` FROM mind_maps WHERE id = ?`, id)
	m, err := scanMindMap(row)
	if isNoRows(err) {
		return nil, notFound("mind map", id)
	}
	if err != nil {
		return nil, storageErr("get mind map", err)
	}
	return m, nil
}

// SessionMindMaps returns one page of a session's mind maps, newest first
func (s *Store) SessionMindMaps(ctx context.Context, sessionID string, limit, offset int) ([]*entities.MindMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mindMapColumns+` FROM mind_maps
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, sessionID, limit, offset)
	if err != nil {
		return nil, storageErr("session mind maps", err)
	}
	defer rows.Close()

	mindMaps := []*entities.MindMap{}
	for rows.Next() {
		m, err := scanMindMap(rows)
		if err != nil {
			return nil, storageErr("scan mind map", err)
		}
		mindMaps = append(mindMaps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("session mind maps", err)
	}
	return mindMaps, nil
}

// DeleteMindMap removes a mind map
func (s *Store) DeleteMindMap(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mind_maps WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete mind map", err)
	}
	return checkAffected(res, "mind map", id)
}
