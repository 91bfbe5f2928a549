package usecase

import (
	"context"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

// SettingsProvider returns the effective user settings for one processing cycle.
// Implementations return an immutable snapshot so a cycle never observes a
// half-applied override.
type SettingsProvider interface {
	Current(ctx context.Context) entities.UserSettings
}
