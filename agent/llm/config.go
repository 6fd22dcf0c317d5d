package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	openrouterx "github.com/abhaygunhalkar/insurance-agents/pkg/openrouter"
)

// Role selects a model configuration. The extractor and intent roles are
// internal structured-output capabilities, not user-facing agents.
type Role string

const (
	RoleSupport   Role = Role(contractx.AgentTypeSupport)
	RoleIntake    Role = Role(contractx.AgentTypeLeadIntake)
	RoleExtractor Role = "extractor"
	RoleIntent    Role = "intent"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SupportModel         string  `envconfig:"SUPPORT_MODEL" split_words:"true"`
	IntakeModel          string  `envconfig:"INTAKE_MODEL" split_words:"true"`
	ExtractorModel       string  `envconfig:"EXTRACTOR_MODEL" split_words:"true"`
	SupportTemperature   float32 `envconfig:"SUPPORT_TEMPERATURE" split_words:"true" default:"-1"`
	IntakeTemperature    float32 `envconfig:"INTAKE_TEMPERATURE" split_words:"true" default:"-1"`
	ExtractorTemperature float32 `envconfig:"EXTRACTOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: model api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model deployment is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor builds the provider config for one role, applying per-role
// model and temperature overrides over the defaults.
func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleSupport:
		if v := strings.TrimSpace(c.SupportModel); v != "" {
			modelName = v
		}
		if c.SupportTemperature >= 0 {
			temp = c.SupportTemperature
		}
	case RoleIntake:
		if v := strings.TrimSpace(c.IntakeModel); v != "" {
			modelName = v
		}
		if c.IntakeTemperature >= 0 {
			temp = c.IntakeTemperature
		}
	case RoleExtractor, RoleIntent:
		if v := strings.TrimSpace(c.ExtractorModel); v != "" {
			modelName = v
		}
		if c.ExtractorTemperature >= 0 {
			temp = c.ExtractorTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
