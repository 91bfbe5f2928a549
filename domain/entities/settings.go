package entities

import (
	"fmt"
	"slices"
	"time"
)

// DefaultUserID is the single user of a single-tenant deployment
const DefaultUserID = "default"

// Supported whisper languages and models
var (
	WhisperLanguages = []string{"auto", "en", "pl", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}
	WhisperModels    = []string{"tiny", "base", "small", "medium", "large"}
)

// Bounds for the chunking settings
const (
	MinVoiceChunkLength  = 100
	MaxVoiceChunkLength  = 5000
	MinVoiceChunksNumber = 1
	MaxVoiceChunksNumber = 200
)

const defaultTaskPrompt = `Please analyze the following transcript and provide insights:

TRANSCRIPT:
{transcript}

Please provide:
1. A brief summary of the main topics discussed
2. Key points or important information mentioned
3. Any questions, concerns, or action items identified
4. Overall sentiment or tone of the conversation

Use clear formatting with line breaks and bullet points for better readability.
Please, be concise, return only summary and USE ONLY INFORMATION IN TRANSCRIPT!!!`

const defaultMindMapPrompt = `Please analyze the following transcript and create a mind map of concepts and relationships.

TRANSCRIPT:
{transcript}

Create a mind map in JSON format with the following structure:
{
  "nodes": [
    {"id": "unique_id_1", "label": "Main Topic", "type": "topic"},
    {"id": "unique_id_2", "label": "Related Concept", "type": "concept"}
  ],
  "edges": [
    {"id": "edge_1", "source": "unique_id_1", "target": "unique_id_2", "label": "relates to", "type": "relationship"}
  ]
}

Guidelines:
- Extract key concepts, topics, entities, and ideas from the transcript
- Create meaningful relationships between concepts
- Use descriptive labels for nodes and edges
- Focus on the most important concepts mentioned
- Keep the structure logical and hierarchical
- Return ONLY valid JSON, no additional text

Return the mind map as a valid JSON object:`

// UserSettings governs chunking thresholds, model choices and prompt templates.
// Prompt templates use {transcript} as the placeholder for session text.
type UserSettings struct {
	UserID              string    `json:"user_id" bson:"_id"`
	WhisperLanguage     string    `json:"whisperLanguage" bson:"whisper_language"`
	WhisperModel        string    `json:"whisperModel" bson:"whisper_model"`
	OllamaModel         string    `json:"ollamaModel" bson:"ollama_model"`
	OllamaSummaryModel  string    `json:"ollamaSummaryModel,omitempty" bson:"ollama_summary_model,omitempty"`
	OllamaMindMapModel  string    `json:"ollamaMindMapModel,omitempty" bson:"ollama_mind_map_model,omitempty"`
	OllamaTaskPrompt    string    `json:"ollamaTaskPrompt" bson:"ollama_task_prompt"`
	OllamaMindMapPrompt string    `json:"ollamaMindMapPrompt" bson:"ollama_mind_map_prompt"`
	VoiceChunkLength    int       `json:"voiceChunkLength" bson:"voice_chunk_length"`
	VoiceChunksNumber   int       `json:"voiceChunksNumber" bson:"voice_chunks_number"`
	ActiveSessionID     string    `json:"activeSessionId,omitempty" bson:"active_session_id,omitempty"`
	CreatedAt           time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" bson:"updated_at"`
}

// DefaultUserSettings returns the settings a new user starts with
func DefaultUserSettings(userID string) *UserSettings {
	now := time.Now().UTC()
	return &UserSettings{
		UserID:              userID,
		WhisperLanguage:     "auto",
		WhisperModel:        "base",
		OllamaModel:         "artifish/llama3.2-uncensored:latest",
		OllamaTaskPrompt:    defaultTaskPrompt,
		OllamaMindMapPrompt: defaultMindMapPrompt,
		VoiceChunkLength:    500,
		VoiceChunksNumber:   10,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// SummaryModel is the model used for the running session summary
func (s UserSettings) SummaryModel() string {
	if s.OllamaSummaryModel != "" {
		return s.OllamaSummaryModel
	}
	return s.OllamaModel
}

// MindMapModel is the model used for mind-map extraction
func (s UserSettings) MindMapModel() string {
	if s.OllamaMindMapModel != "" {
		return s.OllamaMindMapModel
	}
	return s.OllamaModel
}

// Validate checks every field against its allowed range
func (s UserSettings) Validate() error {
	if !slices.Contains(WhisperLanguages, s.WhisperLanguage) {
		return fmt.Errorf("unsupported whisper language %q", s.WhisperLanguage)
	}
	if !slices.Contains(WhisperModels, s.WhisperModel) {
		return fmt.Errorf("unsupported whisper model %q", s.WhisperModel)
	}
	if s.OllamaModel == "" {
		return fmt.Errorf("ollama model is required")
	}
	if s.VoiceChunkLength < MinVoiceChunkLength || s.VoiceChunkLength > MaxVoiceChunkLength {
		return fmt.Errorf("voice chunk length must be between %d and %d ms", MinVoiceChunkLength, MaxVoiceChunkLength)
	}
	if s.VoiceChunksNumber < MinVoiceChunksNumber || s.VoiceChunksNumber > MaxVoiceChunksNumber {
		return fmt.Errorf("voice chunks number must be between %d and %d", MinVoiceChunksNumber, MaxVoiceChunksNumber)
	}
	return nil
}
