// Package config loads agent settings from YAML and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultModel          = "gpt-4o-mini"
	DefaultModelTimeout   = 60 * time.Second
	DefaultModelRetries   = 3
	DefaultMaxIterations  = 10
	DefaultCheckpointEach = 5
	DefaultToolTimeout    = 30 * time.Second
	DefaultMaxCheckpoints = 10
	DefaultPrecision      = 4
	DefaultMaxReadChars   = 5000
	DefaultMaxResults     = 3
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.3
	DefaultDocumentsDir   = "./documents"
)

// Checkpoint backends
const (
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

type Config struct {
	Model       ModelConfig      `yaml:"model"`
	Agent       AgentConfig      `yaml:"agent"`
	Checkpoints CheckpointConfig `yaml:"checkpoints"`
	Tools       ToolsConfig      `yaml:"tools"`
	Logging     LoggingConfig    `yaml:"logging"`
}

type ModelConfig struct {
	Name              string        `yaml:"name"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
}

type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	// CheckpointEvery is the periodic checkpoint cadence in iterations. A
	// negative value disables periodic checkpoints.
	CheckpointEvery int           `yaml:"checkpoint_every"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	Instructions    string        `yaml:"instructions"`
}

type CheckpointConfig struct {
	Backend        string `yaml:"backend"`
	Dir            string `yaml:"dir"`
	DSN            string `yaml:"dsn"`
	MaxCheckpoints int    `yaml:"max_checkpoints"`
	Compression    bool   `yaml:"compression"`
}

type ToolsConfig struct {
	Calculator  CalculatorConfig  `yaml:"calculator"`
	FileHandler FileHandlerConfig `yaml:"file_handler"`
	WebSearch   WebSearchConfig   `yaml:"web_search"`
	RAGSearch   RAGSearchConfig   `yaml:"rag_search"`
}

type CalculatorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Precision int    `yaml:"precision"`
	Engine    string `yaml:"engine"`
}

type FileHandlerConfig struct {
	Enabled           bool     `yaml:"enabled"`
	BaseDir           string   `yaml:"base_dir"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxReadChars      int      `yaml:"max_read_chars"`
}

type WebSearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
}

type RAGSearchConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Dir            string  `yaml:"dir"`
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	ToolLogDir string `yaml:"tool_log_dir"`
}

// Default returns a Config with default values
func Default() Config {
	return Config{
		Model: ModelConfig{
			Name:       DefaultModel,
			Timeout:    DefaultModelTimeout,
			MaxRetries: DefaultModelRetries,
		},
		Agent: AgentConfig{
			MaxIterations:   DefaultMaxIterations,
			CheckpointEvery: DefaultCheckpointEach,
			ToolTimeout:     DefaultToolTimeout,
		},
		Checkpoints: CheckpointConfig{
			Backend:        BackendFile,
			MaxCheckpoints: DefaultMaxCheckpoints,
			Compression:    true,
		},
		Tools: ToolsConfig{
			Calculator: CalculatorConfig{
				Enabled:   true,
				Precision: DefaultPrecision,
				Engine:    "expr",
			},
			FileHandler: FileHandlerConfig{
				Enabled:           true,
				AllowedExtensions: []string{".txt", ".md", ".json", ".csv"},
				MaxReadChars:      DefaultMaxReadChars,
			},
			WebSearch: WebSearchConfig{
				MaxResults: DefaultMaxResults,
			},
			RAGSearch: RAGSearchConfig{
				Dir:            DefaultDocumentsDir,
				TopK:           DefaultTopK,
				ScoreThreshold: DefaultScoreThreshold,
			},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup, which is os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("OPENAI_API_KEY", &c.Model.APIKey)
	str("OPENAI_MODEL", &c.Model.Name)
	str("OPENAI_BASE_URL", &c.Model.BaseURL)
	str("AGENT_CHECKPOINT_DIR", &c.Checkpoints.Dir)
	str("TAVILY_API_KEY", &c.Tools.WebSearch.APIKey)
	str("AGENT_POSTGRES_DSN", &c.Checkpoints.DSN)

	if v, ok := lookup("MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ValidationError{Field: "MAX_ITERATIONS", Message: "must be an integer"}
		}
		c.Agent.MaxIterations = n
	}
	return nil
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return ValidationError{Field: "model.name", Message: "is required"}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return ValidationError{Field: "model.temperature", Message: "must be between 0 and 2"}
	}
	if c.Model.Timeout < 0 {
		return ValidationError{Field: "model.timeout", Message: "must not be negative"}
	}
	if c.Model.RequestsPerMinute < 0 {
		return ValidationError{Field: "model.requests_per_minute", Message: "must not be negative"}
	}
	if c.Model.MaxRetries < 0 {
		return ValidationError{Field: "model.max_retries", Message: "must not be negative"}
	}
	if c.Agent.MaxIterations <= 0 {
		return ValidationError{Field: "agent.max_iterations", Message: "must be positive"}
	}
	if c.Agent.ToolTimeout < 0 {
		return ValidationError{Field: "agent.tool_timeout", Message: "must not be negative"}
	}

	backends := []string{BackendFile, BackendBadger, BackendPostgres, BackendNone}
	if !slices.Contains(backends, c.Checkpoints.Backend) {
		return ValidationError{Field: "checkpoints.backend", Message: "must be one of " + strings.Join(backends, ", ")}
	}
	if c.Checkpoints.Backend == BackendPostgres && c.Checkpoints.DSN == "" {
		return ValidationError{Field: "checkpoints.dsn", Message: "is required for the postgres backend"}
	}
	if c.Checkpoints.MaxCheckpoints <= 0 {
		return ValidationError{Field: "checkpoints.max_checkpoints", Message: "must be positive"}
	}

	calc := c.Tools.Calculator
	if calc.Engine != "expr" && calc.Engine != "risor" {
		return ValidationError{Field: "tools.calculator.engine", Message: "must be expr or risor"}
	}
	if calc.Precision < 0 {
		return ValidationError{Field: "tools.calculator.precision", Message: "must not be negative"}
	}
	for _, ext := range c.Tools.FileHandler.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return ValidationError{Field: "tools.file_handler.allowed_extensions", Message: fmt.Sprintf("%q must start with a dot", ext)}
		}
	}
	if c.Tools.WebSearch.MaxResults <= 0 {
		return ValidationError{Field: "tools.web_search.max_results", Message: "must be positive"}
	}
	if c.Tools.RAGSearch.TopK <= 0 {
		return ValidationError{Field: "tools.rag_search.top_k", Message: "must be positive"}
	}
	if t := c.Tools.RAGSearch.ScoreThreshold; t < 0 || t > 1 {
		return ValidationError{Field: "tools.rag_search.score_threshold", Message: "must be between 0 and 1"}
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return ValidationError{Field: "logging.level", Message: err.Error()}
	}
	return nil
}

// SlogLevel parses the configured log level
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return level, fmt.Errorf("unknown level %q", c.Level)
	}
	return level, nil
}
