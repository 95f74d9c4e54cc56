package config

import "runtime"

const (
	defaultConfigPath             = "~/.config/courtside/config.toml"
	defaultOutputDir              = "~/courtside/reports"
	defaultLogDir                 = "~/.local/share/courtside/logs"
	defaultDataDir                = "~/.local/share/courtside"
	defaultSamplingInterval       = 0.5
	defaultPlayerCount            = 2
	defaultMaxConsecutiveSkips    = 10
	defaultStallTimeoutSeconds    = 30
	defaultMinKeypointConfidence  = 0.5
	defaultEventsPerMetric        = 3
	defaultPoseCallTimeoutSeconds = 10
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-2.5-flash"
	defaultLLMReferer             = "https://github.com/courtside/courtside"
	defaultLLMTitle               = "courtside"
	defaultLLMTimeoutSeconds      = 120
	defaultLLMTemperature         = 0.4
	defaultLLMMaxRetries          = 3
	defaultLLMBackoffBaseSeconds  = 1.0
	defaultLLMBackoffMaxSeconds   = 30.0
	defaultLLMConcurrency         = 4
	defaultExcerptChars           = 4000
	defaultWhisperXModel          = "large-v3-turbo"
	defaultTranscriptTimeout      = 1800
	defaultNotifyRequestTimeout   = 10
	defaultMQTTBroker             = "tcp://127.0.0.1:1883"
	defaultMQTTClientID           = "courtside"
	defaultMQTTTopic              = "courtside/runs"
	defaultMQTTConnectTimeout     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var (
	defaultRoles         = []string{"coach", "student", "parent"}
	defaultLanguages     = []string{"en"}
	defaultWorkerCommand = []string{"python3", "-m", "courtside_pose.worker"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			DataDir:   defaultDataDir,
		},
		Analysis: Analysis{
			SamplingInterval:      defaultSamplingInterval,
			PlayerCount:           defaultPlayerCount,
			MaxConsecutiveSkips:   defaultMaxConsecutiveSkips,
			StallTimeoutSeconds:   defaultStallTimeoutSeconds,
			MinKeypointConfidence: defaultMinKeypointConfidence,
			EventsPerMetric:       defaultEventsPerMetric,
			FFmpegBinary:          "ffmpeg",
			FFprobeBinary:         "ffprobe",
		},
		Pose: Pose{
			WorkerCommand:      append([]string(nil), defaultWorkerCommand...),
			Workers:            runtime.NumCPU(),
			CallTimeoutSeconds: defaultPoseCallTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:                 defaultLLMBaseURL,
			Model:                   defaultLLMModel,
			Referer:                 defaultLLMReferer,
			Title:                   defaultLLMTitle,
			TimeoutSeconds:          defaultLLMTimeoutSeconds,
			Temperature:             defaultLLMTemperature,
			MaxRetries:              defaultLLMMaxRetries,
			RetryBackoffBaseSeconds: defaultLLMBackoffBaseSeconds,
			RetryBackoffMaxSeconds:  defaultLLMBackoffMaxSeconds,
			Concurrency:             defaultLLMConcurrency,
		},
		Reports: Reports{
			Roles:                  append([]string(nil), defaultRoles...),
			Languages:              append([]string(nil), defaultLanguages...),
			TranscriptExcerptChars: defaultExcerptChars,
			PDF:                    true,
			Readme:                 true,
		},
		Transcript: Transcript{
			WhisperXModel:  defaultWhisperXModel,
			Language:       "en",
			TimeoutSeconds: defaultTranscriptTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunEvents:      true,
			BranchFailures: true,
		},
		MQTT: MQTT{
			Broker:                defaultMQTTBroker,
			ClientID:              defaultMQTTClientID,
			Topic:                 defaultMQTTTopic,
			QoS:                   1,
			ConnectTimeoutSeconds: defaultMQTTConnectTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
