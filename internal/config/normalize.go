package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"courtside/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnalysis()
	c.normalizePose()
	c.normalizeLLM()
	c.normalizeReports()
	c.normalizeTranscript()
	c.normalizeMQTT()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.FFmpegBinary = strings.TrimSpace(c.Analysis.FFmpegBinary)
	if c.Analysis.FFmpegBinary == "" {
		c.Analysis.FFmpegBinary = "ffmpeg"
	}
	c.Analysis.FFprobeBinary = strings.TrimSpace(c.Analysis.FFprobeBinary)
	if c.Analysis.FFprobeBinary == "" {
		c.Analysis.FFprobeBinary = "ffprobe"
	}
	if c.Analysis.EventsPerMetric <= 0 {
		c.Analysis.EventsPerMetric = defaultEventsPerMetric
	}
}

func (c *Config) normalizePose() {
	cmd := make([]string, 0, len(c.Pose.WorkerCommand))
	for _, part := range c.Pose.WorkerCommand {
		if part = strings.TrimSpace(part); part != "" {
			cmd = append(cmd, part)
		}
	}
	c.Pose.WorkerCommand = cmd
	if c.Pose.Workers <= 0 {
		c.Pose.Workers = runtime.NumCPU()
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.Concurrency <= 0 {
		c.LLM.Concurrency = defaultLLMConcurrency
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("COURTSIDE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeReports() {
	c.Reports.Roles = normalizeRoles(c.Reports.Roles)
	if len(c.Reports.Roles) == 0 {
		c.Reports.Roles = append([]string(nil), defaultRoles...)
	}
	c.Reports.Languages = NormalizeLanguages(c.Reports.Languages)
	if len(c.Reports.Languages) == 0 {
		c.Reports.Languages = append([]string(nil), defaultLanguages...)
	}
	if c.Reports.TranscriptExcerptChars < 0 {
		c.Reports.TranscriptExcerptChars = 0
	}
}

func (c *Config) normalizeTranscript() {
	c.Transcript.WhisperXModel = strings.TrimSpace(c.Transcript.WhisperXModel)
	if c.Transcript.WhisperXModel == "" {
		c.Transcript.WhisperXModel = defaultWhisperXModel
	}
	if code, ok := language.Normalize(c.Transcript.Language); ok {
		c.Transcript.Language = code
	} else {
		c.Transcript.Language = strings.ToLower(strings.TrimSpace(c.Transcript.Language))
	}
	if c.Transcript.TimeoutSeconds <= 0 {
		c.Transcript.TimeoutSeconds = defaultTranscriptTimeout
	}
}

func (c *Config) normalizeMQTT() {
	c.MQTT.Broker = strings.TrimSpace(c.MQTT.Broker)
	c.MQTT.ClientID = strings.TrimSpace(c.MQTT.ClientID)
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultMQTTClientID
	}
	c.MQTT.Topic = strings.Trim(strings.TrimSpace(c.MQTT.Topic), "/")
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = defaultMQTTTopic
	}
	if c.MQTT.Password == "" {
		if value, ok := os.LookupEnv("COURTSIDE_MQTT_PASSWORD"); ok {
			c.MQTT.Password = value
		}
	}
	if c.MQTT.ConnectTimeoutSeconds <= 0 {
		c.MQTT.ConnectTimeoutSeconds = defaultMQTTConnectTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

// NormalizeLanguages lowercases, maps tags to supported codes, and
// deduplicates. Unsupported values are kept as-is so validation can name them.
func NormalizeLanguages(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		code, ok := language.Normalize(value)
		if !ok {
			code = strings.ToLower(value)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
