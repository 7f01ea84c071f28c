package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config describes the daemon configuration.
type Config struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	Listen     string `json:"listen" yaml:"listen"`         // HTTP listen address
	Org        string `json:"org" yaml:"org"`               // Remote hosting organization
	Workspace  string `json:"workspace" yaml:"workspace"`   // Root directory for participant repositories
	LogLevel   string `json:"loglevel" yaml:"loglevel"`     // Zap log level
	Recordings string `json:"recordings" yaml:"recordings"` // Directory screen recordings land in
	Bucket     string `json:"bucket" yaml:"bucket"`         // S3 bucket for recording uploads, empty disables
	Editor     string `json:"editor" yaml:"editor"`         // Editor binary, defaults to code

	// Development overrides, bypassing the instance metadata service.
	Dev            bool   `json:"dev" yaml:"dev"`
	DevParticipant string `json:"dev_participant" yaml:"dev_participant"`
	DevStage       int    `json:"dev_stage" yaml:"dev_stage"`
}

func newConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Token returns the remote access token. An empty token degrades the
// study to local-only persistence, it is never an error.
func (c *Config) Token() string {
	return os.Getenv("GITHUB_TOKEN")
}

func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "workspace"
	}
	return filepath.Join(home, "workspace")
}

func defaultRecordings() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recordings"
	}
	return filepath.Join(home, "recordings")
}
