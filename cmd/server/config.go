package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/ad-insights/internal/services"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort       = "8080"
	defaultImagesDir  = "data/images"
	defaultRunTimeout = 5 * time.Minute
	defaultModel      = "gpt-4o"
	defaultOllamaHost = "http://localhost:11434"
)

type llmConfig interface {
	llm(ctx context.Context, logger *slog.Logger) (workflow.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	services.LLMParameters `yaml:",inline"`
}

type config struct {
	Port       string        `yaml:"port"`
	ImagesDir  string        `yaml:"imagesDir"`
	PromptsDir string        `yaml:"promptsDir"`
	RunTimeout time.Duration `yaml:"runTimeout"`
	LLM        llmConfig     `yaml:"llm"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	// BaseURL points the client at an OpenAI-compatible gateway such as OpenRouter.
	BaseURL string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

type azureConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

type bedrockConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Region        string `yaml:"region"`
}

var errModelRequired = errors.New("model is required")

// defaultConfigPath returns the location of the config file when none is given on the command line.
func defaultConfigPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "adinsights", "config.yaml"), nil
}

// defaultConfig is used when no config file exists: an OpenAI gpt-4o client keyed from the
// environment.
func defaultConfig() config {
	cfg := config{
		LLM: &openAIConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "openai", Model: defaultModel},
		},
	}
	cfg.RunTimeout = defaultRunTimeout
	cfg.applyDefaults()
	return cfg
}

// loadConfig reads the config file at path. A missing file yields defaultConfig unless
// mustExist is set.
func loadConfig(path string, mustExist bool) (config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mustExist {
			return defaultConfig(), nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *config) applyDefaults() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.ImagesDir == "" {
		c.ImagesDir = defaultImagesDir
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port       string         `yaml:"port"`
		ImagesDir  string         `yaml:"imagesDir"`
		PromptsDir string         `yaml:"promptsDir"`
		RunTimeout *time.Duration `yaml:"runTimeout"`
		LLM        map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.ImagesDir = rawConfig.ImagesDir
	c.PromptsDir = rawConfig.PromptsDir
	// An explicit zero disables the run timeout.
	c.RunTimeout = defaultRunTimeout
	if rawConfig.RunTimeout != nil {
		c.RunTimeout = *rawConfig.RunTimeout
	}
	c.applyDefaults()

	if rawConfig.LLM == nil {
		c.LLM = defaultConfig().LLM
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "azure":
		llm = &azureConfig{}
	case "bedrock":
		llm = &bedrockConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func envOr(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

func (o openAIConfig) llm(_ context.Context, logger *slog.Logger) (workflow.LLM, error) {
	if o.Model == "" {
		return nil, errModelRequired
	}

	apiKey := envOr(o.APIKey, "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required, set it in the config or in OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.LLMParameters, logger), nil
}

func (o ollamaConfig) llm(_ context.Context, logger *slog.Logger) (workflow.LLM, error) {
	if o.Model == "" {
		return nil, errModelRequired
	}

	host := envOr(o.Host, "OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, o.LLMParameters, logger)
}

func (a anthropicConfig) llm(_ context.Context, logger *slog.Logger) (workflow.LLM, error) {
	if a.Model == "" {
		return nil, errModelRequired
	}

	apiKey := envOr(a.APIKey, "ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required, set it in the config or in ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, a.LLMParameters, logger), nil
}

func (a azureConfig) llm(_ context.Context, logger *slog.Logger) (workflow.LLM, error) {
	if a.Model == "" {
		return nil, errModelRequired
	}

	endpoint := envOr(a.Endpoint, "AZURE_OPENAI_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required, set it in the config or in AZURE_OPENAI_ENDPOINT")
	}
	apiKey := envOr(a.APIKey, "AZURE_OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required, set it in the config or in AZURE_OPENAI_API_KEY")
	}
	return services.NewAzure(endpoint, apiKey, a.Model, a.LLMParameters, logger)
}

func (b bedrockConfig) llm(ctx context.Context, logger *slog.Logger) (workflow.LLM, error) {
	if b.Model == "" {
		return nil, errModelRequired
	}
	return services.NewBedrock(ctx, b.Region, b.Model, b.LLMParameters, logger)
}
