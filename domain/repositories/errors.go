package repositories

import "errors"

// Error kinds returned across collaborator boundaries. Adapters wrap them with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage failure")
	ErrInvalidAudio   = errors.New("invalid audio")
	ErrTranscode      = errors.New("transcode failed")
	ErrTranscription  = errors.New("transcription failed")
	ErrLLMUnavailable = errors.New("llm unavailable")
)
