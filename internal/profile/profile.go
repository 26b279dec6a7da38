package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the assistant server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the chat server
	Addr string
	// Port is the binding port for the chat server
	Port int
	// Data is the data directory holding conversation history and snapshots
	Data string
	// Version is the current version of the server
	Version string

	// BackendURL is the base URL of the room booking backend API
	BackendURL string
	// CallerID identifies this assistant to the booking backend
	CallerID string
	// ContactID is the contact reported on bookings
	ContactID string

	// AI configuration
	AILLMProvider string // ROOMWISE_AI_LLM_PROVIDER (default: deepseek)
	AIAPIKey      string // ROOMWISE_AI_API_KEY
	AIBaseURL     string // ROOMWISE_AI_BASE_URL (default: https://api.deepseek.com)
	AILLMModel    string // ROOMWISE_AI_LLM_MODEL (default: deepseek-chat)

	// SummaryTokenCeiling is the weighted token threshold that triggers
	// conversation compaction. Zero means the built-in default.
	SummaryTokenCeiling int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM endpoint is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != "" || p.AILLMProvider == "ollama"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from ROOMWISE_* environment variables.
// Unset variables keep the value already present on the profile.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("ROOMWISE_MODE", p.Mode)
	p.Addr = getEnvOrDefault("ROOMWISE_ADDR", p.Addr)
	if port := os.Getenv("ROOMWISE_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			p.Port = v
		}
	}
	p.Data = getEnvOrDefault("ROOMWISE_DATA", p.Data)

	p.BackendURL = getEnvOrDefault("ROOMWISE_BACKEND_URL", p.BackendURL)
	p.CallerID = getEnvOrDefault("ROOMWISE_CALLER_ID", p.CallerID)
	p.ContactID = getEnvOrDefault("ROOMWISE_CONTACT_ID", p.ContactID)

	p.AILLMProvider = getEnvOrDefault("ROOMWISE_AI_LLM_PROVIDER", "deepseek")
	p.AIAPIKey = getEnvOrDefault("ROOMWISE_AI_API_KEY", p.AIAPIKey)
	p.AIBaseURL = getEnvOrDefault("ROOMWISE_AI_BASE_URL", "https://api.deepseek.com")
	p.AILLMModel = getEnvOrDefault("ROOMWISE_AI_LLM_MODEL", "deepseek-chat")

	if ceiling := os.Getenv("ROOMWISE_SUMMARY_TOKEN_CEILING"); ceiling != "" {
		if v, err := strconv.Atoi(ceiling); err == nil && v > 0 {
			p.SummaryTokenCeiling = v
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.BackendURL == "" {
		p.BackendURL = "http://localhost:8000"
	}
	if p.CallerID == "" {
		p.CallerID = "roomwise"
	}
	if p.ContactID == "" {
		p.ContactID = "roomwise"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	return nil
}
