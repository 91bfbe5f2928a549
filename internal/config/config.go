package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	STT       STTConfig       `yaml:"stt"`
	LLM       LLMConfig       `yaml:"llm"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// StorageConfig selects and configures the backing store
type StorageConfig struct {
	Driver        string        `yaml:"driver"`
	SQLiteDSN     string        `yaml:"sqlite_dsn"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	Timeout       time.Duration `yaml:"timeout"`
}

// STTConfig selects and configures speech recognition
type STTConfig struct {
	Provider   string        `yaml:"provider"`
	WhisperURL string        `yaml:"whisper_url"`
	Timeout    time.Duration `yaml:"timeout"`
	FFmpegPath string        `yaml:"ffmpeg_path"`
	TempDir    string        `yaml:"temp_dir"`
}

// LLMConfig selects and configures the completion provider
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	OllamaURL         string        `yaml:"ollama_url"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRepairAttempts int           `yaml:"max_repair_attempts"`
}

// WebSocketConfig contains per-connection limits
type WebSocketConfig struct {
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	PongWait        time.Duration `yaml:"pong_wait"`
	InactiveTimeout time.Duration `yaml:"inactive_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// TasksConfig bounds background work
type TasksConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

// BackfillConfig controls the unprocessed transcript sweep
type BackfillConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Development bool `yaml:"development"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: StorageConfig{
			Driver:        "sqlite",
			SQLiteDSN:     "voicemap.db",
			MongoDatabase: "voicemap",
			Timeout:       5 * time.Second,
		},
		STT: STTConfig{
			Provider:   "whisper",
			WhisperURL: "http://localhost:8081",
			Timeout:    2 * time.Minute,
			FFmpegPath: "ffmpeg",
		},
		LLM: LLMConfig{
			Provider:          "ollama",
			OllamaURL:         "http://localhost:11434",
			Timeout:           2 * time.Minute,
			MaxRepairAttempts: 3,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:      256,
			MaxMessageSize:  2 << 20,
			PongWait:        60 * time.Second,
			InactiveTimeout: 30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Tasks: TasksConfig{
			MaxConcurrent: 4,
			Timeout:       5 * time.Minute,
		},
		Backfill: BackfillConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. A .env file in the
// working directory is loaded into the environment first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Server.Port, "PORT")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.SQLiteDSN, "SQLITE_DSN")
	setString(&c.Storage.MongoURI, "MONGODB_URI")
	setString(&c.Storage.MongoDatabase, "MONGODB_DATABASE")
	setString(&c.STT.Provider, "STT_PROVIDER")
	setString(&c.STT.WhisperURL, "WHISPER_URL")
	setString(&c.STT.FFmpegPath, "FFMPEG_PATH")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.OllamaURL, "OLLAMA_URL")
	setString(&c.LLM.GeminiAPIKey, "GEMINI_API_KEY")

	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Development = b
		}
	}
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %q", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLiteDSN == "" {
			return errors.New("storage: sqlite_dsn cannot be empty")
		}
	case "mongo":
		if c.Storage.MongoURI == "" {
			return errors.New("storage: mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}

	switch c.STT.Provider {
	case "whisper", "google", "mock":
	default:
		return fmt.Errorf("stt: unknown provider %q", c.STT.Provider)
	}

	switch c.LLM.Provider {
	case "ollama", "mock":
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("llm: gemini_api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("llm: unknown provider %q", c.LLM.Provider)
	}

	if c.LLM.MaxRepairAttempts < 0 {
		return fmt.Errorf("llm: max_repair_attempts cannot be negative, got %d", c.LLM.MaxRepairAttempts)
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("websocket: send_buffer must be at least 1, got %d", c.WebSocket.SendBuffer)
	}
	if c.Tasks.MaxConcurrent < 1 {
		return fmt.Errorf("tasks: max_concurrent must be at least 1, got %d", c.Tasks.MaxConcurrent)
	}
	return nil
}
