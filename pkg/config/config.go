// Package config provides configuration loading and validation for the chatbot
// orchestrator.
//
// Configuration is an explicit struct constructed once at process start and
// passed by reference into each component's constructor. There are no package
// globals and no ambient lookups: a component that needs a setting receives
// the Config (or the relevant field) when it is built.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies which LLM backend to use.
type Provider string

const (
	// ProviderOpenAI selects the OpenAI chat completions backend.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic selects the Anthropic messages backend.
	ProviderAnthropic Provider = "anthropic"
)

// ModelCfg holds LLM model settings.
type ModelCfg struct {
	Provider    Provider `yaml:"provider"`
	Name        string   `yaml:"name"`
	Temperature float32  `yaml:"temperature"`
	// MaxHistoryTokens caps the token budget of conversation history passed
	// to the model on each call.
	MaxHistoryTokens int `yaml:"max_history_tokens"`
}

// ServicesCfg holds the base URLs of the remote tool providers.
type ServicesCfg struct {
	BatchURL   string `yaml:"batch_url"`
	ResultsURL string `yaml:"results_url"`
}

// DatabaseCfg holds SQLite persistence settings.
type DatabaseCfg struct {
	Path string `yaml:"path"`
	// ConversationTTL is how long a conversation stays loadable after its
	// last update.
	ConversationTTL time.Duration `yaml:"conversation_ttl"`
}

// FeaturesCfg holds feature toggles carried over from the legacy deployment.
// Flags are read at wiring time; flipping one at runtime has no effect.
type FeaturesCfg struct {
	SharedContext   bool `yaml:"shared_context"`
	Supervisor      bool `yaml:"supervisor"`
	CrossAgentHints bool `yaml:"cross_agent_hints"`
}

// Config is the root configuration for the orchestrator.
type Config struct {
	Model    ModelCfg    `yaml:"model"`
	Services ServicesCfg `yaml:"services"`
	Database DatabaseCfg `yaml:"database"`
	Features FeaturesCfg `yaml:"features"`

	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`

	// LLMTimeout bounds every individual model call. A hung call surfaces a
	// retryable error instead of blocking the turn forever.
	LLMTimeout time.Duration `yaml:"llm_timeout"`
	// HTTPTimeout bounds every remote tool invocation.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// MaxStepRetries bounds how many times the supervisor may keep the same
	// subtask incomplete before the workflow is terminated.
	MaxStepRetries int `yaml:"max_step_retries"`
	// MaxGraphIterations is a hard guard on the planner/router/agent loop.
	MaxGraphIterations int `yaml:"max_graph_iterations"`

	ListenAddr string `yaml:"listen_addr"`
	Debug      bool   `yaml:"debug"`
}

// Default returns a Config populated with the defaults the legacy deployment
// shipped with.
func Default() *Config {
	return &Config{
		Model: ModelCfg{
			Provider:         ProviderOpenAI,
			Name:             "gpt-4o",
			Temperature:      0.1,
			MaxHistoryTokens: 6000,
		},
		Services: ServicesCfg{
			BatchURL:   "http://localhost:8000",
			ResultsURL: "http://localhost:8080",
		},
		Database: DatabaseCfg{
			Path:            "./data/chatbot.db",
			ConversationTTL: 24 * time.Hour,
		},
		Features: FeaturesCfg{
			SharedContext:   true,
			Supervisor:      true,
			CrossAgentHints: true,
		},
		LLMTimeout:         60 * time.Second,
		HTTPTimeout:        30 * time.Second,
		MaxStepRetries:     3,
		MaxGraphIterations: 25,
		ListenAddr:         ":8090",
	}
}

// Load builds a Config from defaults, an optional YAML file, and environment
// overrides, in that order. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Secrets are only
// ever read from the environment, never from the YAML file.
func (c *Config) applyEnv() {
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	if v := os.Getenv("FINCHAT_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("FINCHAT_PROVIDER"); v != "" {
		c.Model.Provider = Provider(v)
	}
	if v := os.Getenv("BATCH_SERVICE_URL"); v != "" {
		c.Services.BatchURL = v
	}
	if v := os.Getenv("RESULTS_SERVICE_URL"); v != "" {
		c.Services.ResultsURL = v
	}
	if v := os.Getenv("FINCHAT_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("FINCHAT_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DEBUG"); v == "1" || v == "true" {
		c.Debug = true
	}
	if v := os.Getenv("FINCHAT_MAX_STEP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxStepRetries = n
		}
	}
}

// APIKey returns the API key for the configured provider.
func (c *Config) APIKey() string {
	switch c.Model.Provider {
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// Validate checks critical settings and returns an error naming everything
// that is missing or inconsistent.
func (c *Config) Validate() error {
	var missing []string

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}

	if c.Services.BatchURL == "" {
		missing = append(missing, "services.batch_url")
	}
	if c.Services.ResultsURL == "" {
		missing = append(missing, "services.results_url")
	}
	if c.Database.Path == "" {
		missing = append(missing, "database.path")
	}
	if c.MaxStepRetries <= 0 {
		missing = append(missing, "max_step_retries (must be positive)")
	}
	if c.MaxGraphIterations <= 0 {
		missing = append(missing, "max_graph_iterations (must be positive)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("invalid configuration: %v", missing)
	}
	return nil
}
