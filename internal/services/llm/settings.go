package llm

import "courtside/internal/config"

// FromSettings maps the [llm] configuration section onto a client Config.
func FromSettings(settings config.LLM) Config {
	return Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		Temperature:    settings.Temperature,
		MaxTokens:      settings.MaxTokens,
		TimeoutSeconds: settings.TimeoutSeconds,
	}
}
