package services

// Defaults applied when a parameter is not configured.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
)

// LLMParameters holds the inference parameters shared by every provider. Nil fields fall back to
// the provider's own default, except MaxTokens and Temperature which fall back to DefaultMaxTokens
// and DefaultTemperature.
type LLMParameters struct {
	MaxTokens   *int     `yaml:"maxTokens"`
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	Stop        []string `yaml:"stop"`
	Seed        *int     `yaml:"seed"`

	PresencePenalty  *float32 `yaml:"presencePenalty"`
	FrequencyPenalty *float32 `yaml:"frequencyPenalty"`
}

// MaxTokensOrDefault returns the configured maximum number of output tokens, or DefaultMaxTokens.
func (p LLMParameters) MaxTokensOrDefault() int {
	if p.MaxTokens == nil || *p.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return *p.MaxTokens
}

// TemperatureOrDefault returns the configured temperature, or DefaultTemperature.
func (p LLMParameters) TemperatureOrDefault() float32 {
	if p.Temperature == nil {
		return DefaultTemperature
	}
	return *p.Temperature
}
