// Package configfile loads and saves the workspace metadata file.
// The file lives in the .dpa workspace directory and holds paths and
// engine settings; runtime flags and env vars overlay it at the CLI.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const ConfigFileName = "metadata.json"

// DirName is the workspace directory holding all dpa state.
const DirName = ".dpa"

type Config struct {
	RegistryFile string `json:"registry_file,omitempty"`
	StoriesFile  string `json:"stories_file,omitempty"`
	ScriptsDir   string `json:"scripts_dir,omitempty"`
	DeployLog    string `json:"deploy_log,omitempty"`
	AuditLog     string `json:"audit_log,omitempty"`

	// Transformation engine settings
	EngineCommand     string `json:"engine_command,omitempty"`      // defaults to "sqlmesh"
	EngineProjectPath string `json:"engine_project_path,omitempty"` // passed as --paths
	EngineTimeoutSecs int    `json:"engine_timeout_seconds,omitempty"`
	ScriptTimeoutSecs int    `json:"script_timeout_seconds,omitempty"`

	// ShadowTests are engine test names re-run against the shadow
	// environment during shadow_validation.
	ShadowTests []string `json:"shadow_tests,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		RegistryFile:  "features.yaml",
		StoriesFile:   "stories.yaml",
		ScriptsDir:    "rollback-scripts",
		DeployLog:     "deployments.json",
		AuditLog:      "audit.jsonl",
		EngineCommand: "sqlmesh",
	}
}

func ConfigPath(dpaDir string) string {
	return filepath.Join(dpaDir, ConfigFileName)
}

// Load reads the config from dpaDir. Returns (nil, nil) when no config
// file exists yet.
func Load(dpaDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(dpaDir)) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Save(dpaDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(dpaDir), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func (c *Config) RegistryPath(dpaDir string) string {
	if c.RegistryFile == "" {
		return filepath.Join(dpaDir, "features.yaml")
	}
	return filepath.Join(dpaDir, c.RegistryFile)
}

func (c *Config) StoriesPath(dpaDir string) string {
	if c.StoriesFile == "" {
		return filepath.Join(dpaDir, "stories.yaml")
	}
	return filepath.Join(dpaDir, c.StoriesFile)
}

func (c *Config) ScriptsPath(dpaDir string) string {
	if c.ScriptsDir == "" {
		return filepath.Join(dpaDir, "rollback-scripts")
	}
	return filepath.Join(dpaDir, c.ScriptsDir)
}

func (c *Config) DeployLogPath(dpaDir string) string {
	if c.DeployLog == "" {
		return filepath.Join(dpaDir, "deployments.json")
	}
	return filepath.Join(dpaDir, c.DeployLog)
}

func (c *Config) AuditLogPath(dpaDir string) string {
	if c.AuditLog == "" {
		return filepath.Join(dpaDir, "audit.jsonl")
	}
	return filepath.Join(dpaDir, c.AuditLog)
}

// DefaultEngineTimeout matches the engine bridge's 5 minute ceiling for
// long-running plan and migrate operations.
const DefaultEngineTimeout = 5 * time.Minute

func (c *Config) EngineTimeout() time.Duration {
	if c.EngineTimeoutSecs <= 0 {
		return DefaultEngineTimeout
	}
	return time.Duration(c.EngineTimeoutSecs) * time.Second
}

func (c *Config) ScriptTimeout() time.Duration {
	if c.ScriptTimeoutSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.ScriptTimeoutSecs) * time.Second
}

func (c *Config) Engine() string {
	if c.EngineCommand == "" {
		return "sqlmesh"
	}
	return c.EngineCommand
}
