package ota

import (
	"encoding/json"
	"os"

	"github.com/powerdock-io/powerdock/pkg/log"
)

// maxTokenFileSize bounds the token config file. Anything larger is treated
// as not a token file at all.
const maxTokenFileSize = 10000

type tokenConfig struct {
	GithubToken string `json:"github_token"`
}

// LoadToken reads the optional API access token from the given config file.
// Every failure mode (file absent, oversized, malformed JSON, missing field)
// collapses to "no token": the caller proceeds unauthenticated. The exact
// cause is logged for the operator but never surfaced as an error.
func LoadToken(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		log.Info("Token config file not found, continuing without authentication", "path", path)
		return ""
	}

	if info.Size() <= 0 || info.Size() > maxTokenFileSize {
		log.Warn("Invalid token config file size", "path", path, "size", info.Size())
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Failed to read token config file", "path", path, "error", err)
		return ""
	}

	var cfg tokenConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Warn("Failed to parse token config JSON", "path", path)
		return ""
	}

	if cfg.GithubToken == "" {
		log.Debug("No github_token field found in token config", "path", path)
		return ""
	}

	log.Info("API token loaded", "path", path)
	return cfg.GithubToken
}
