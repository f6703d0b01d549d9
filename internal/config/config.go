package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Synth       SynthConfig     `yaml:"synth"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Speakers    SpeakersConfig  `yaml:"speakers"`
	JobStore    JobStoreConfig  `yaml:"job_store"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// SynthConfig selects and tunes the synthesis backend.
type SynthConfig struct {
	Mode        string  `yaml:"mode"` // mock, exec
	Command     string  `yaml:"command"`
	SampleRate  int     `yaml:"sample_rate"`
	TopK        int     `yaml:"top_k"`
	Temperature float64 `yaml:"temperature"`
}

// ChunkingConfig bounds how long texts are split for synthesis.
type ChunkingConfig struct {
	MaxChars      int  `yaml:"max_chars"`
	InsertSilence bool `yaml:"insert_silence"`
	SilenceMS     int  `yaml:"silence_ms"`
}

type SpeakersConfig struct {
	CatalogPath    string `yaml:"catalog_path"`
	DefaultSpeaker string `yaml:"default_speaker"`
}

type JobStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "kol-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Synth: SynthConfig{
			Mode:        "mock",
			SampleRate:  24000,
			TopK:        15,
			Temperature: 0.6,
		},
		Chunking: ChunkingConfig{
			MaxChars:      150,
			InsertSilence: true,
			SilenceMS:     300,
		},
		Speakers: SpeakersConfig{
			CatalogPath:    "./speakers/speakers.yaml",
			DefaultSpeaker: "osim",
		},
		JobStore: JobStoreConfig{
			Path:          "./data/kol-jobs.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxJobs:       10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "KOL_RUNTIME_NAME")
	overrideString(&cfg.Environment, "KOL_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "KOL_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "KOL_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "KOL_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "KOL_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "KOL_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "KOL_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "KOL_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "KOL_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "KOL_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "KOL_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "KOL_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "KOL_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "KOL_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "KOL_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Synth.Mode, "KOL_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "KOL_SYNTH_COMMAND")
	overrideInt(&cfg.Synth.SampleRate, "KOL_SYNTH_SAMPLE_RATE")
	overrideInt(&cfg.Synth.TopK, "KOL_SYNTH_TOP_K")
	overrideFloat(&cfg.Synth.Temperature, "KOL_SYNTH_TEMPERATURE")
	overrideInt(&cfg.Chunking.MaxChars, "KOL_CHUNKING_MAX_CHARS")
	overrideBool(&cfg.Chunking.InsertSilence, "KOL_CHUNKING_INSERT_SILENCE")
	overrideInt(&cfg.Chunking.SilenceMS, "KOL_CHUNKING_SILENCE_MS")
	overrideString(&cfg.Speakers.CatalogPath, "KOL_SPEAKERS_CATALOG_PATH")
	overrideString(&cfg.Speakers.DefaultSpeaker, "KOL_SPEAKERS_DEFAULT")
	overrideString(&cfg.JobStore.Path, "KOL_JOB_STORE_PATH")
	overrideString(&cfg.JobStore.RetentionMode, "KOL_JOB_STORE_RETENTION_MODE")
	overrideInt(&cfg.JobStore.RetentionDays, "KOL_JOB_STORE_RETENTION_DAYS")
	overrideInt(&cfg.JobStore.MaxJobs, "KOL_JOB_STORE_MAX_JOBS")
	overrideBool(&cfg.JobStore.VacuumOnStart, "KOL_JOB_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Synth.Mode {
	case "mock", "exec":
	default:
		return errors.New("synth.mode must be one of mock|exec")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.Synth.SampleRate <= 0 {
		return errors.New("synth.sample_rate must be positive")
	}
	if cfg.Synth.TopK <= 0 {
		return errors.New("synth.top_k must be positive")
	}
	if cfg.Synth.Temperature <= 0 {
		return errors.New("synth.temperature must be positive")
	}
	if cfg.Chunking.MaxChars <= 0 {
		return errors.New("chunking.max_chars must be positive")
	}
	if cfg.Chunking.SilenceMS < 0 {
		return errors.New("chunking.silence_ms must be >= 0")
	}
	if cfg.Speakers.CatalogPath == "" {
		return errors.New("speakers.catalog_path must not be empty")
	}
	if cfg.Speakers.DefaultSpeaker == "" {
		return errors.New("speakers.default_speaker must not be empty")
	}
	if cfg.JobStore.Path == "" {
		return errors.New("job_store.path must not be empty")
	}
	switch cfg.JobStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("job_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.JobStore.RetentionDays < 0 {
		return errors.New("job_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
