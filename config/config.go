// Package config loads the analyzer configuration: a YAML file for tunables
// and environment variables for credentials and repository selection.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GitHubConfig selects the repository and the data-access client settings.
// Token is environment-only and never read from the YAML file.
type GitHubConfig struct {
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	CacheSize int    `yaml:"cache_size"`
	Token     string `yaml:"-"`
}

// LLMConfig selects and tunes the reasoning-service backend.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // "ollama" or "gemini"
	Host            string `yaml:"host"`     // ollama only
	Model           string `yaml:"model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxPromptLength int    `yaml:"max_prompt_length"`
}

// AnalysisConfig bounds the cost of a run: page sizes, directory depth and
// prompt truncation lengths. All limits are injected into the workflow,
// never read ambiently.
type AnalysisConfig struct {
	SrcRoot              string `yaml:"src_root"`
	ManifestExtension    string `yaml:"manifest_extension"`
	EntryPointFile       string `yaml:"entry_point_file"`
	MaxDirectoryDepth    int    `yaml:"max_directory_depth"`
	SearchPageSize       int    `yaml:"search_page_size"`
	OpenIssuesPageSize   int    `yaml:"open_issues_page_size"`
	ClosedIssuesPageSize int    `yaml:"closed_issues_page_size"`
	PullRequestsPageSize int    `yaml:"pull_requests_page_size"`
	ReadmeTruncate       int    `yaml:"readme_truncate"`
	FileTruncate         int    `yaml:"file_truncate"`
	BodyTruncate         int    `yaml:"body_truncate"`
}

// OutputConfig places the report artifact.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config is the top-level configuration struct, constructed once at process
// start and passed by reference into the workflow.
type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load reads the YAML file at path, fills in defaults for omitted fields and
// overlays environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setInt(&c.GitHub.CacheSize, 256)

	setString(&c.LLM.Provider, "ollama")
	setString(&c.LLM.Host, "http://localhost:11434")
	setString(&c.LLM.Model, "llama3")
	setInt(&c.LLM.TimeoutSeconds, 120)
	setInt(&c.LLM.MaxPromptLength, 12000)

	setString(&c.Analysis.SrcRoot, "src")
	setString(&c.Analysis.ManifestExtension, "csproj")
	setString(&c.Analysis.EntryPointFile, "Program.cs")
	setInt(&c.Analysis.MaxDirectoryDepth, 3)
	setInt(&c.Analysis.SearchPageSize, 30)
	setInt(&c.Analysis.OpenIssuesPageSize, 50)
	setInt(&c.Analysis.ClosedIssuesPageSize, 30)
	setInt(&c.Analysis.PullRequestsPageSize, 30)
	setInt(&c.Analysis.ReadmeTruncate, 3000)
	setInt(&c.Analysis.FileTruncate, 2000)
	setInt(&c.Analysis.BodyTruncate, 500)

	setString(&c.Output.Dir, "output")
	setString(&c.Logging.Level, "info")
	setString(&c.Logging.Format, "text")
	setString(&c.Logging.Output, "stderr")
}

// applyEnv overlays credentials and repository selection from the
// environment: GITHUB_TOKEN, GITHUB_REPO_OWNER, GITHUB_REPO_NAME,
// OUTPUT_DIR, REPOINSIGHT_LLM_TIMEOUT.
func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_REPO_OWNER"); v != "" {
		c.GitHub.Owner = v
	}
	if v := os.Getenv("GITHUB_REPO_NAME"); v != "" {
		c.GitHub.Repo = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("REPOINSIGHT_LLM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LLM.TimeoutSeconds = n
		}
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}
