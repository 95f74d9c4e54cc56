package config

import (
	"errors"
	"fmt"
	"strings"

	"courtside/internal/language"
)

// Roles lists the report audiences in canonical order.
var Roles = []string{"coach", "student", "parent"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validatePose(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateReports(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateMQTT(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.SamplingInterval <= 0 {
		return errors.New("analysis.sampling_interval must be positive (seconds)")
	}
	if c.Analysis.PlayerCount != 1 && c.Analysis.PlayerCount != 2 {
		return errors.New("analysis.player_count must be 1 or 2")
	}
	if c.Analysis.MaxConsecutiveSkips < 0 {
		return errors.New("analysis.max_consecutive_skips must be >= 0")
	}
	if c.Analysis.StallTimeoutSeconds <= 0 {
		return errors.New("analysis.stall_timeout_seconds must be positive")
	}
	if c.Analysis.MinKeypointConfidence < 0 || c.Analysis.MinKeypointConfidence > 1 {
		return errors.New("analysis.min_keypoint_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePose() error {
	if len(c.Pose.WorkerCommand) == 0 {
		return errors.New("pose.worker_command must name the pose worker executable")
	}
	if c.Pose.CallTimeoutSeconds <= 0 {
		return errors.New("pose.call_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("llm.max_retries must be >= 0")
	}
	if c.LLM.RetryBackoffBaseSeconds <= 0 {
		return errors.New("llm.retry_backoff_base_seconds must be positive")
	}
	if c.LLM.RetryBackoffMaxSeconds < c.LLM.RetryBackoffBaseSeconds {
		return errors.New("llm.retry_backoff_max_seconds must be >= llm.retry_backoff_base_seconds")
	}
	return nil
}

func (c *Config) validateReports() error {
	if err := ValidateRoles(c.Reports.Roles); err != nil {
		return fmt.Errorf("reports.roles: %w", err)
	}
	if err := ValidateLanguages(c.Reports.Languages); err != nil {
		return fmt.Errorf("reports.languages: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.NtfyTopic) != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker must be set when mqtt.enabled is true")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.New("mqtt.qos must be 0, 1, or 2")
	}
	return nil
}

// ValidateRoles rejects empty lists and unknown audiences.
func ValidateRoles(roles []string) error {
	if len(roles) == 0 {
		return errors.New("at least one role is required")
	}
	for _, role := range roles {
		if !isRole(role) {
			return fmt.Errorf("unsupported role %q (expected one of %s)", role, strings.Join(Roles, ", "))
		}
	}
	return nil
}

// ValidateLanguages rejects empty lists and languages without report support.
func ValidateLanguages(codes []string) error {
	if len(codes) == 0 {
		return errors.New("at least one language is required")
	}
	for _, code := range codes {
		if !language.IsSupported(code) {
			return fmt.Errorf("unsupported language %q (expected one of %s)", code, strings.Join(language.Supported(), ", "))
		}
	}
	return nil
}

func isRole(value string) bool {
	for _, role := range Roles {
		if role == value {
			return true
		}
	}
	return false
}
