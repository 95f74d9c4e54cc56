package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	DataDir   string `toml:"data_dir"`
}

// Analysis contains frame sampling and metric aggregation settings.
type Analysis struct {
	SamplingInterval      float64 `toml:"sampling_interval"`
	PlayerCount           int     `toml:"player_count"`
	MaxConsecutiveSkips   int     `toml:"max_consecutive_skips"`
	StallTimeoutSeconds   int     `toml:"stall_timeout_seconds"`
	MinKeypointConfidence float64 `toml:"min_keypoint_confidence"`
	EventsPerMetric       int     `toml:"events_per_metric"`
	FFmpegBinary          string  `toml:"ffmpeg_binary"`
	FFprobeBinary         string  `toml:"ffprobe_binary"`
}

// Pose contains settings for the external pose estimation worker.
type Pose struct {
	WorkerCommand      []string `toml:"worker_command"`
	Workers            int      `toml:"workers"`
	CallTimeoutSeconds int      `toml:"call_timeout_seconds"`
}

// LLM contains generation service connection and retry settings.
type LLM struct {
	APIKey                  string  `toml:"api_key"`
	BaseURL                 string  `toml:"base_url"`
	Model                   string  `toml:"model"`
	Referer                 string  `toml:"referer"`
	Title                   string  `toml:"title"`
	TimeoutSeconds          int     `toml:"timeout_seconds"`
	Temperature             float64 `toml:"temperature"`
	MaxTokens               int     `toml:"max_tokens"`
	MaxRetries              int     `toml:"max_retries"`
	RetryBackoffBaseSeconds float64 `toml:"retry_backoff_base_seconds"`
	RetryBackoffMaxSeconds  float64 `toml:"retry_backoff_max_seconds"`
	Concurrency             int     `toml:"concurrency"`
}

// Reports contains fan-out and artifact rendering settings.
type Reports struct {
	Roles                  []string `toml:"roles"`
	Languages              []string `toml:"languages"`
	TranscriptExcerptChars int      `toml:"transcript_excerpt_chars"`
	PDF                    bool     `toml:"pdf"`
	Readme                 bool     `toml:"readme"`
	AnnotatedVideo         bool     `toml:"annotated_video"`
}

// Transcript contains the optional WhisperX speech transcription settings.
type Transcript struct {
	Enabled        bool   `toml:"enabled"`
	WhisperXModel  string `toml:"whisperx_model"`
	CUDAEnabled    bool   `toml:"cuda_enabled"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunEvents      bool   `toml:"run_events"`
	BranchFailures bool   `toml:"branch_failures"`
}

// MQTT contains configuration for publishing run events to a broker.
type MQTT struct {
	Enabled               bool   `toml:"enabled"`
	Broker                string `toml:"broker"`
	ClientID              string `toml:"client_id"`
	Topic                 string `toml:"topic"`
	QoS                   int    `toml:"qos"`
	Username              string `toml:"username"`
	Password              string `toml:"password"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for courtside.
//
// Configuration sections by subsystem:
//   - Paths: report output, log, and run database directories
//   - Analysis: sampling cadence, stall detection, keypoint thresholds
//   - Pose: pose worker command and pool size
//   - LLM: generation endpoint, retries, concurrency
//   - Reports: default roles, languages, and rendering toggles
//   - Transcript: optional WhisperX transcription
//   - Notifications: ntfy push notification settings
//   - MQTT: broker publishing of run events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Analysis      Analysis      `toml:"analysis"`
	Pose          Pose          `toml:"pose"`
	LLM           LLM           `toml:"llm"`
	Reports       Reports       `toml:"reports"`
	Transcript    Transcript    `toml:"transcript"`
	Notifications Notifications `toml:"notifications"`
	MQTT          MQTT          `toml:"mqtt"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// ConfigEnvVar names an environment variable that overrides the default
// config location when no explicit path is given.
const ConfigEnvVar = "COURTSIDE_CONFIG"

// Load locates, parses, and validates a configuration file. It returns the
// config, the path it resolved, and whether a file existed there; a missing
// file yields defaults. Unknown keys are rejected so typos surface early.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	err = toml.NewDecoder(file).DisallowUnknownFields().Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		keys := make([]string, 0, len(strict.Errors))
		for _, de := range strict.Errors {
			keys = append(keys, strings.Join(de.Key(), "."))
		}
		return fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the config file in priority order: the explicit
// path, $COURTSIDE_CONFIG, the per-user default, then ./courtside.toml. When
// nothing exists the per-user default is reported as missing.
func resolveConfigPath(path string) (string, bool, error) {
	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(ConfigEnvVar))
	}
	if explicit != "" {
		expanded, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		exists, err := fileExists(expanded)
		return expanded, exists, err
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("courtside.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := fileExists(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the output, log, and data directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunStorePath returns the sqlite database path for run history.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.DataDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
