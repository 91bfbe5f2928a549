package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

var (
	// ErrEmptyOverride is returned when a temporary override carries no keys
	ErrEmptyOverride = errors.New("no valid temporary settings provided")
	// ErrInvalidSettings wraps validation failures of an update
	ErrInvalidSettings = errors.New("invalid settings")
)

// TemporaryOverride shadows LLM settings without persisting them.
// Nil fields leave the persisted value visible.
type TemporaryOverride struct {
	OllamaModel         *string `json:"ollamaModel,omitempty"`
	OllamaSummaryModel  *string `json:"ollamaSummaryModel,omitempty"`
	OllamaMindMapModel  *string `json:"ollamaMindMapModel,omitempty"`
	OllamaTaskPrompt    *string `json:"ollamaTaskPrompt,omitempty"`
	OllamaMindMapPrompt *string `json:"ollamaMindMapPrompt,omitempty"`
}

// Keys lists the settings the override shadows
func (o TemporaryOverride) Keys() []string {
	keys := []string{}
	if o.OllamaModel != nil {
		keys = append(keys, "ollamaModel")
	}
	if o.OllamaSummaryModel != nil {
		keys = append(keys, "ollamaSummaryModel")
	}
	if o.OllamaMindMapModel != nil {
		keys = append(keys, "ollamaMindMapModel")
	}
	if o.OllamaTaskPrompt != nil {
		keys = append(keys, "ollamaTaskPrompt")
	}
	if o.OllamaMindMapPrompt != nil {
		keys = append(keys, "ollamaMindMapPrompt")
	}
	return keys
}

// IsEmpty reports whether the override shadows nothing
func (o TemporaryOverride) IsEmpty() bool {
	return len(o.Keys()) == 0
}

func (o TemporaryOverride) merge(next TemporaryOverride) TemporaryOverride {
	if next.OllamaModel != nil {
		o.OllamaModel = next.OllamaModel
	}
	if next.OllamaSummaryModel != nil {
		o.OllamaSummaryModel = next.OllamaSummaryModel
	}
	if next.OllamaMindMapModel != nil {
		o.OllamaMindMapModel = next.OllamaMindMapModel
	}
	if next.OllamaTaskPrompt != nil {
		o.OllamaTaskPrompt = next.OllamaTaskPrompt
	}
	if next.OllamaMindMapPrompt != nil {
		o.OllamaMindMapPrompt = next.OllamaMindMapPrompt
	}
	return o
}

func (o TemporaryOverride) apply(s entities.UserSettings) entities.UserSettings {
	if o.OllamaModel != nil {
		s.OllamaModel = *o.OllamaModel
	}
	if o.OllamaSummaryModel != nil {
		s.OllamaSummaryModel = *o.OllamaSummaryModel
	}
	if o.OllamaMindMapModel != nil {
		s.OllamaMindMapModel = *o.OllamaMindMapModel
	}
	if o.OllamaTaskPrompt != nil {
		s.OllamaTaskPrompt = *o.OllamaTaskPrompt
	}
	if o.OllamaMindMapPrompt != nil {
		s.OllamaMindMapPrompt = *o.OllamaMindMapPrompt
	}
	return s
}

// Update is a partial change to the persisted settings
type Update struct {
	WhisperLanguage     *string `json:"whisperLanguage,omitempty"`
	WhisperModel        *string `json:"whisperModel,omitempty"`
	OllamaModel         *string `json:"ollamaModel,omitempty"`
	OllamaSummaryModel  *string `json:"ollamaSummaryModel,omitempty"`
	OllamaMindMapModel  *string `json:"ollamaMindMapModel,omitempty"`
	OllamaTaskPrompt    *string `json:"ollamaTaskPrompt,omitempty"`
	OllamaMindMapPrompt *string `json:"ollamaMindMapPrompt,omitempty"`
	VoiceChunkLength    *int    `json:"voiceChunkLength,omitempty"`
	VoiceChunksNumber   *int    `json:"voiceChunksNumber,omitempty"`
	ActiveSessionID     *string `json:"activeSessionId,omitempty"`
}

func (u Update) applyTo(s *entities.UserSettings) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&s.WhisperLanguage, u.WhisperLanguage)
	setString(&s.WhisperModel, u.WhisperModel)
	setString(&s.OllamaModel, u.OllamaModel)
	setString(&s.OllamaSummaryModel, u.OllamaSummaryModel)
	setString(&s.OllamaMindMapModel, u.OllamaMindMapModel)
	setString(&s.OllamaTaskPrompt, u.OllamaTaskPrompt)
	setString(&s.OllamaMindMapPrompt, u.OllamaMindMapPrompt)
	setString(&s.ActiveSessionID, u.ActiveSessionID)
	if u.VoiceChunkLength != nil {
		s.VoiceChunkLength = *u.VoiceChunkLength
	}
	if u.VoiceChunksNumber != nil {
		s.VoiceChunksNumber = *u.VoiceChunksNumber
	}
}

// Service owns the user settings and the process-wide temporary override.
// Every read returns a value snapshot; callers never share mutable state.
type Service struct {
	repo    repositories.SettingsRepository
	userID  string
	timeout time.Duration
	logger  *zap.Logger

	mu        sync.RWMutex
	temporary *TemporaryOverride
}

// NewService creates a settings service for the default user
func NewService(repo repositories.SettingsRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		userID:  entities.DefaultUserID,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Persisted returns the stored settings, creating defaults on first use
func (s *Service) Persisted(ctx context.Context) (*entities.UserSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stored, err := s.repo.GetSettings(ctx, s.userID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	defaults := entities.DefaultUserSettings(s.userID)
	if err := s.repo.SaveSettings(ctx, defaults); err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	s.logger.Info("Created default user settings", zap.String("userID", s.userID))
	return defaults, nil
}

// Current returns the effective settings: persisted values shadowed by the
// temporary override. Storage failures fall back to defaults.
func (s *Service) Current(ctx context.Context) entities.UserSettings {
	base := entities.DefaultUserSettings(s.userID)
	if stored, err := s.Persisted(ctx); err != nil {
		s.logger.Warn("Using default settings", zap.Error(err))
	} else {
		base = stored
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.temporary == nil {
		return *base
	}
	return s.temporary.apply(*base)
}

// Update validates and persists a partial settings change
func (s *Service) Update(ctx context.Context, u Update) (*entities.UserSettings, error) {
	current, err := s.Persisted(ctx)
	if err != nil {
		return nil, err
	}

	next := *current
	u.applyTo(&next)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	next.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.SaveSettings(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Info("User settings updated", zap.String("userID", s.userID))
	return &next, nil
}

// ApplyTemporary merges o into the temporary override and returns the result
func (s *Service) ApplyTemporary(o TemporaryOverride) (TemporaryOverride, error) {
	if o.IsEmpty() {
		return TemporaryOverride{}, ErrEmptyOverride
	}
	if o.OllamaModel != nil && *o.OllamaModel == "" {
		return TemporaryOverride{}, errors.New("ollamaModel must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := o
	if s.temporary != nil {
		merged = s.temporary.merge(o)
	}
	s.temporary = &merged

	s.logger.Info("Temporary settings applied", zap.Strings("keys", merged.Keys()))
	return merged, nil
}

// Temporary returns the active override, if any
func (s *Service) Temporary() (TemporaryOverride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.temporary == nil {
		return TemporaryOverride{}, false
	}
	return *s.temporary, true
}

// ClearTemporary drops the override. It reports whether anything was cleared;
// clearing twice is a no-op and persisted settings are never touched.
func (s *Service) ClearTemporary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.temporary == nil {
		return false
	}
	s.temporary = nil
	s.logger.Info("Temporary settings cleared")
	return true
}
