// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Service        ServiceConfig
	Observability  ObservabilityConfig
	Turn           TurnConfig
	Transcription  TranscriptionConfig
	Chat           ChatConfig
	Synthesis      SynthesisConfig
	ReferenceVoice ReferenceVoiceConfig
	Kafka          KafkaConfig
}

// ServiceConfig holds listener settings.
type ServiceConfig struct {
	HTTPPort string
	GRPCPort string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// TurnConfig holds per-turn guardrails.
type TurnConfig struct {
	MaxAudioBytes int64
}

// TranscriptionConfig selects and configures the speech-to-text provider.
type TranscriptionConfig struct {
	Provider      string // http, google, mock
	URL           string
	Translate     bool
	Timeout       time.Duration
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string
}

// ChatConfig configures the chat completion service.
type ChatConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float32
	Timeout      time.Duration
	SystemPrompt string
	PrePrompt    string
	PostPrompt   string
	PromptsFile  string
}

// SynthesisConfig configures the voice-clone service.
type SynthesisConfig struct {
	URL      string
	Language string
	Timeout  time.Duration
}

// ReferenceVoiceConfig locates the reference recording and its transcript.
type ReferenceVoiceConfig struct {
	Dir       string
	Name      string
	AudioPath string
	TextPath  string
}

// KafkaConfig configures turn event publishing.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
}

// LoadDotEnv loads the given .env files, or ./.env when none are given.
// Missing files are skipped and variables already set are never overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-turn")

	return &Config{
		Service: ServiceConfig{
			HTTPPort: envOrDefault("HTTP_PORT", "8080"),
			GRPCPort: envOrDefault("GRPC_PORT", "50051"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		Turn: TurnConfig{
			MaxAudioBytes: envOrDefaultInt64("TURN_MAX_AUDIO_BYTES", 25*1024*1024),
		},
		Transcription: TranscriptionConfig{
			Provider:      strings.ToLower(envOrDefault("TRANSCRIPTION_PROVIDER", "http")),
			URL:           envOrDefault("TRANSCRIPTION_URL", "http://127.0.0.1:9191/inference"),
			Translate:     envOrDefaultBool("TRANSCRIPTION_TRANSLATE", false),
			Timeout:       envOrDefaultDuration("TRANSCRIPTION_TIMEOUT", 120*time.Second),
			LanguageCode:  envOrDefault("TRANSCRIPTION_LANGUAGE_CODE", "en-US"),
			SampleRateHz:  envOrDefaultInt("TRANSCRIPTION_SAMPLE_RATE_HZ", 48000),
			AudioEncoding: envOrDefault("TRANSCRIPTION_AUDIO_ENCODING", ""),
		},
		Chat: ChatConfig{
			BaseURL:      envOrDefault("CHAT_BASE_URL", "https://api.openai.com/v1"),
			APIKey:       os.Getenv("CHAT_API_KEY"),
			Model:        envOrDefault("CHAT_MODEL", "gpt-4o-mini"),
			Temperature:  envOrDefaultFloat32("CHAT_TEMPERATURE", 0.7),
			Timeout:      envOrDefaultDuration("CHAT_TIMEOUT", 60*time.Second),
			SystemPrompt: os.Getenv("CHAT_SYSTEM_PROMPT"),
			PrePrompt:    os.Getenv("CHAT_PRE_PROMPT"),
			PostPrompt:   os.Getenv("CHAT_POST_PROMPT"),
			PromptsFile:  os.Getenv("CHAT_PROMPTS_FILE"),
		},
		Synthesis: SynthesisConfig{
			URL:      envOrDefault("SYNTHESIS_URL", "http://127.0.0.1:8000"),
			Language: envOrDefault("SYNTHESIS_LANGUAGE", "Auto"),
			Timeout:  envOrDefaultDuration("SYNTHESIS_TIMEOUT", 300*time.Second),
		},
		ReferenceVoice: ReferenceVoiceConfig{
			Dir:       envOrDefault("REFERENCE_VOICE_DIR", "voices"),
			Name:      envOrDefault("REFERENCE_VOICE", "default"),
			AudioPath: os.Getenv("REFERENCE_AUDIO_PATH"),
			TextPath:  os.Getenv("REFERENCE_TEXT_PATH"),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:        envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicCompleted: envOrDefault("KAFKA_TOPIC_COMPLETED", "voice.turn.completed"),
			TopicFailed:    envOrDefault("KAFKA_TOPIC_FAILED", "voice.turn.failed"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", principal),
		},
	}
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transcription.Provider {
	case "http":
		if c.Transcription.URL == "" {
			errs = append(errs, errors.New("TRANSCRIPTION_URL is required for the http provider"))
		}
	case "google", "mock":
	default:
		errs = append(errs, errors.New("TRANSCRIPTION_PROVIDER must be one of http, google, mock"))
	}
	if c.Chat.Model == "" {
		errs = append(errs, errors.New("CHAT_MODEL is required"))
	}
	if c.Synthesis.URL == "" {
		errs = append(errs, errors.New("SYNTHESIS_URL is required"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat32(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
