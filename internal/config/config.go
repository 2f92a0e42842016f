// Package config coordinates system-wide settings. Precedence is
// file > environment > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"classpulse/internal/scoring"
)

type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Inference *InferenceConfig `json:"inference"`
	Scoring   *ScoringConfig   `json:"scoring"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	SendQueueSize   int           `json:"send_queue_size"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	MaxMessageBytes int64         `json:"max_message_bytes"`
	SampleLimit     int           `json:"sample_limit"`
	SampleWindow    time.Duration `json:"sample_window"`
}

type InferenceConfig struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
}

type ScoringConfig struct {
	Window             time.Duration `json:"window"`
	DecayInterval      time.Duration `json:"decay_interval"`
	MinFrames          int           `json:"min_frames"`
	MinConfidence      float64       `json:"min_confidence"`
	DecayFactor        float64       `json:"decay_factor"`
	DominanceThreshold float64       `json:"dominance_threshold"`
	WeightsPath        string        `json:"weights_path"`
}

// DefaultConfig returns production-ready defaults for classroom scale.
func DefaultConfig() *Config {
	scoringDefaults := scoring.DefaultConfig()
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./classpulse.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			SendQueueSize:   100,
			WriteTimeout:    5 * time.Second,
			MaxMessageBytes: 4 << 20, // encoded camera frames are large
			SampleLimit:     100,
			SampleWindow:    time.Minute,
		},
		Inference: &InferenceConfig{
			URL:     "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Scoring: &ScoringConfig{
			Window:             scoringDefaults.Window,
			DecayInterval:      scoringDefaults.DecayInterval,
			MinFrames:          scoringDefaults.MinFrames,
			MinConfidence:      scoringDefaults.MinConfidence,
			DecayFactor:        scoringDefaults.DecayFactor,
			DominanceThreshold: scoringDefaults.DominanceThreshold,
		},
	}
}

// Validate catches unusable configurations before startup.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.SendQueueSize <= 0 {
		return fmt.Errorf("WebSocket send queue size must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("WebSocket max message bytes must be positive")
	}
	if c.WebSocket.SampleLimit <= 0 {
		return fmt.Errorf("sample limit must be positive")
	}
	if c.WebSocket.SampleWindow <= 0 {
		return fmt.Errorf("sample window must be positive")
	}

	if c.Inference == nil {
		return fmt.Errorf("inference configuration is required")
	}
	if c.Inference.URL == "" {
		return fmt.Errorf("inference URL cannot be empty")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}

	if c.Scoring == nil {
		return fmt.Errorf("scoring configuration is required")
	}
	if c.Scoring.Window <= 0 {
		return fmt.Errorf("scoring window must be positive")
	}
	if c.Scoring.DecayInterval <= 0 {
		return fmt.Errorf("scoring decay interval must be positive")
	}
	if c.Scoring.MinFrames <= 0 {
		return fmt.Errorf("scoring min frames must be positive")
	}
	if c.Scoring.MinConfidence < 0 || c.Scoring.MinConfidence > 1 {
		return fmt.Errorf("scoring min confidence must be in [0, 1]")
	}
	if c.Scoring.DecayFactor <= 0 || c.Scoring.DecayFactor > 1 {
		return fmt.Errorf("scoring decay factor must be in (0, 1]")
	}
	if c.Scoring.DominanceThreshold < 0 || c.Scoring.DominanceThreshold > 1 {
		return fmt.Errorf("scoring dominance threshold must be in [0, 1]")
	}

	return nil
}

// ScorerConfig converts the scoring section into the scorer's own
// configuration type.
func (c *Config) ScorerConfig() scoring.Config {
	return scoring.Config{
		Window:             c.Scoring.Window,
		DecayInterval:      c.Scoring.DecayInterval,
		MinFrames:          c.Scoring.MinFrames,
		MinConfidence:      c.Scoring.MinConfidence,
		DecayFactor:        c.Scoring.DecayFactor,
		DominanceThreshold: c.Scoring.DominanceThreshold,
	}
}

// LoadFromEnv returns the defaults overridden by CLASSPULSE_* variables.
// Malformed values fall back silently to the default.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("CLASSPULSE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("CLASSPULSE_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if readTimeout := os.Getenv("CLASSPULSE_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("CLASSPULSE_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if dbPath := os.Getenv("CLASSPULSE_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if dbTimeout := os.Getenv("CLASSPULSE_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}

	if queueSize := os.Getenv("CLASSPULSE_WEBSOCKET_SEND_QUEUE_SIZE"); queueSize != "" {
		if size, err := strconv.Atoi(queueSize); err == nil {
			config.WebSocket.SendQueueSize = size
		}
	}
	if maxBytes := os.Getenv("CLASSPULSE_WEBSOCKET_MAX_MESSAGE_BYTES"); maxBytes != "" {
		if n, err := strconv.ParseInt(maxBytes, 10, 64); err == nil {
			config.WebSocket.MaxMessageBytes = n
		}
	}
	if sampleLimit := os.Getenv("CLASSPULSE_SAMPLE_LIMIT"); sampleLimit != "" {
		if n, err := strconv.Atoi(sampleLimit); err == nil {
			config.WebSocket.SampleLimit = n
		}
	}
	if sampleWindow := os.Getenv("CLASSPULSE_SAMPLE_WINDOW"); sampleWindow != "" {
		if window, err := time.ParseDuration(sampleWindow); err == nil {
			config.WebSocket.SampleWindow = window
		}
	}

	if url := os.Getenv("CLASSPULSE_INFERENCE_URL"); url != "" {
		config.Inference.URL = url
	}
	if inferenceTimeout := os.Getenv("CLASSPULSE_INFERENCE_TIMEOUT"); inferenceTimeout != "" {
		if timeout, err := time.ParseDuration(inferenceTimeout); err == nil {
			config.Inference.Timeout = timeout
		}
	}

	if window := os.Getenv("CLASSPULSE_SCORING_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Scoring.Window = d
		}
	}
	if minFrames := os.Getenv("CLASSPULSE_SCORING_MIN_FRAMES"); minFrames != "" {
		if n, err := strconv.Atoi(minFrames); err == nil {
			config.Scoring.MinFrames = n
		}
	}
	if weightsPath := os.Getenv("CLASSPULSE_SCORING_WEIGHTS_PATH"); weightsPath != "" {
		config.Scoring.WeightsPath = weightsPath
	}

	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	Database  *databaseConfigFile  `json:"database"`
	HTTP      *httpConfigFile      `json:"http"`
	WebSocket *webSocketConfigFile `json:"websocket"`
	Inference *inferenceConfigFile `json:"inference"`
	Scoring   *scoringConfigFile   `json:"scoring"`
}

type databaseConfigFile struct {
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

type httpConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type webSocketConfigFile struct {
	SendQueueSize   int    `json:"send_queue_size"`
	WriteTimeout    string `json:"write_timeout"`
	MaxMessageBytes int64  `json:"max_message_bytes"`
	SampleLimit     int    `json:"sample_limit"`
	SampleWindow    string `json:"sample_window"`
}

type inferenceConfigFile struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout"`
}

type scoringConfigFile struct {
	Window             string  `json:"window"`
	DecayInterval      string  `json:"decay_interval"`
	MinFrames          int     `json:"min_frames"`
	MinConfidence      float64 `json:"min_confidence"`
	DecayFactor        float64 `json:"decay_factor"`
	DominanceThreshold float64 `json:"dominance_threshold"`
	WeightsPath        string  `json:"weights_path"`
}

// LoadFromFile parses a JSON configuration file over the defaults.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		setDuration(&config.Database.Timeout, file.Database.Timeout)
	}

	if file.HTTP != nil {
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		setDuration(&config.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		setDuration(&config.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}

	if file.WebSocket != nil {
		if file.WebSocket.SendQueueSize > 0 {
			config.WebSocket.SendQueueSize = file.WebSocket.SendQueueSize
		}
		if file.WebSocket.MaxMessageBytes > 0 {
			config.WebSocket.MaxMessageBytes = file.WebSocket.MaxMessageBytes
		}
		if file.WebSocket.SampleLimit > 0 {
			config.WebSocket.SampleLimit = file.WebSocket.SampleLimit
		}
		setDuration(&config.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		setDuration(&config.WebSocket.SampleWindow, file.WebSocket.SampleWindow)
	}

	if file.Inference != nil {
		if file.Inference.URL != "" {
			config.Inference.URL = file.Inference.URL
		}
		setDuration(&config.Inference.Timeout, file.Inference.Timeout)
	}

	if file.Scoring != nil {
		if file.Scoring.MinFrames > 0 {
			config.Scoring.MinFrames = file.Scoring.MinFrames
		}
		if file.Scoring.MinConfidence > 0 {
			config.Scoring.MinConfidence = file.Scoring.MinConfidence
		}
		if file.Scoring.DecayFactor > 0 {
			config.Scoring.DecayFactor = file.Scoring.DecayFactor
		}
		if file.Scoring.DominanceThreshold > 0 {
			config.Scoring.DominanceThreshold = file.Scoring.DominanceThreshold
		}
		if file.Scoring.WeightsPath != "" {
			config.Scoring.WeightsPath = file.Scoring.WeightsPath
		}
		setDuration(&config.Scoring.Window, file.Scoring.Window)
		setDuration(&config.Scoring.DecayInterval, file.Scoring.DecayInterval)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves the effective configuration:
// file > environment > defaults. File errors are ignored so a missing
// file still yields a working configuration.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}
