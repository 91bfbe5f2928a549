package sqlite

import (
	"context"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

// GetSettings returns the stored settings of a user
func (s *Store) GetSettings(ctx context.Context, userID string) (*entities.UserSettings, error) {
	var (
		u                    entities.UserSettings
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, whisper_language, whisper_model, ollama_model, ollama_summary_model,
			ollama_mind_map_model, ollama_task_prompt, ollama_mind_map_prompt,
			voice_chunk_length, voice_chunks_number, active_session_id, created_at, updated_at
		FROM user_settings WHERE user_id = ?
	`, userID).Scan(&u.UserID, &u.WhisperLanguage, &u.WhisperModel, &u.OllamaModel, &u.OllamaSummaryModel,
		&u.OllamaMindMapModel, &u.OllamaTaskPrompt, &u.OllamaMindMapPrompt,
		&u.VoiceChunkLength, &u.VoiceChunksNumber, &u.ActiveSessionID, &createdAt, &updatedAt)
	if isNoRows(err) {
		return nil, notFound("settings", userID)
	}
	if err != nil {
		return nil, storageErr("get settings", err)
	}
	u.CreatedAt = fromMicros(createdAt)
	u.UpdatedAt = fromMicros(updatedAt)
	return &u, nil
}

// SaveSettings inserts or replaces the settings of a user
func (s *Store) SaveSettings(ctx context.Context, u *entities.UserSettings) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, whisper_language, whisper_model, ollama_model, ollama_summary_model,
			ollama_mind_map_model, ollama_task_prompt, ollama_mind_map_prompt,
			voice_chunk_length, voice_chunks_number, active_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			whisper_language = excluded.whisper_language,
			whisper_model = excluded.whisper_model,
			ollama_model = excluded.ollama_model,
			ollama_summary_model = excluded.ollama_summary_model,
			ollama_mind_map_model = excluded.ollama_mind_map_model,
			ollama_task_prompt = excluded.ollama_task_prompt,
			ollama_mind_map_prompt = excluded.ollama_mind_map_prompt,
			voice_chunk_length = excluded.voice_chunk_length,
			voice_chunks_number = excluded.voice_chunks_number,
			active_session_id = excluded.active_session_id,
			updated_at = excluded.updated_at
	`, u.UserID, u.WhisperLanguage, u.WhisperModel, u.OllamaModel, u.OllamaSummaryModel,
		u.OllamaMindMapModel, u.OllamaTaskPrompt, u.OllamaMindMapPrompt,
		u.VoiceChunkLength, u.VoiceChunksNumber, u.ActiveSessionID, toMicros(u.CreatedAt), toMicros(u.UpdatedAt))
	if err != nil {
		return storageErr("save settings", err)
	}
	return nil
}
