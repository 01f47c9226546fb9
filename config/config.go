package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting for the engine, its stores and the HTTP server.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
}

// EngineConfig carries the job engine limits. Durations are whole seconds.
type EngineConfig struct {
	MaxConcurrentJobs    int   `mapstructure:"max_concurrent_jobs"`
	MaxInputSizeVideo    int64 `mapstructure:"max_input_size_video"`
	MaxInputSizeImage    int64 `mapstructure:"max_input_size_image"`
	MaxJobDurationSec    int   `mapstructure:"max_job_duration"`
	ArtifactRetentionSec int   `mapstructure:"artifact_retention"`
	JobRetentionSec      int   `mapstructure:"job_retention"`
	JanitorIntervalSec   int   `mapstructure:"janitor_interval"`
}

// BackendConfig selects and configures the codec backend.
type BackendConfig struct {
	Type          string `mapstructure:"type"` // "local" or "remote"
	FFmpegPath    string `mapstructure:"ffmpeg_path"`
	FFprobePath   string `mapstructure:"ffprobe_path"`
	CWebPPath     string `mapstructure:"cwebp_path"`
	RemoteURL     string `mapstructure:"remote_url"`
	RemoteRetries int    `mapstructure:"remote_retries"`
}

type ArtifactsConfig struct {
	Backend string `mapstructure:"backend"` // "memory", "pebble" or "redis"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // empty disables API auth
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MaxJobDuration converts the configured limit to a time.Duration.
func (e EngineConfig) MaxJobDuration() time.Duration {
	return time.Duration(e.MaxJobDurationSec) * time.Second
}

// ArtifactRetention returns 0 when artifacts live for the whole session.
func (e EngineConfig) ArtifactRetention() time.Duration {
	return time.Duration(e.ArtifactRetentionSec) * time.Second
}

// JobRetention returns 0 when terminal job records are never pruned.
func (e EngineConfig) JobRetention() time.Duration {
	return time.Duration(e.JobRetentionSec) * time.Second
}

func (e EngineConfig) JanitorInterval() time.Duration {
	return time.Duration(e.JanitorIntervalSec) * time.Second
}

// Load merges defaults, the optional config file at path and WEBSHRINK_*
// environment variables, in that order of increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("WEBSHRINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	cfg.applyDerived()
	return cfg
}

// applyDerived fills settings whose defaults depend on other settings. An
// unset upload ceiling admits the larger media ceiling plus room for the
// multipart envelope.
func (c *Config) applyDerived() {
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = max(c.Engine.MaxInputSizeVideo, c.Engine.MaxInputSizeImage) + MB
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Engine.MaxConcurrentJobs < 1 {
		errs = append(errs, fmt.Errorf("engine.max_concurrent_jobs must be >= 1, got %d", c.Engine.MaxConcurrentJobs))
	}
	if c.Engine.MaxInputSizeVideo <= 0 {
		errs = append(errs, errors.New("engine.max_input_size_video must be positive"))
	}
	if c.Engine.MaxInputSizeImage <= 0 {
		errs = append(errs, errors.New("engine.max_input_size_image must be positive"))
	}
	if c.Engine.MaxJobDurationSec <= 0 {
		errs = append(errs, errors.New("engine.max_job_duration must be positive"))
	}
	if c.Engine.ArtifactRetentionSec < 0 || c.Engine.JobRetentionSec < 0 {
		errs = append(errs, errors.New("retention values cannot be negative"))
	}
	if c.Engine.JanitorIntervalSec <= 0 {
		errs = append(errs, errors.New("engine.janitor_interval must be positive"))
	}

	switch c.Backend.Type {
	case BackendLocal:
	case BackendRemote:
		if strings.TrimSpace(c.Backend.RemoteURL) == "" {
			errs = append(errs, errors.New("backend.remote_url is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend.type %q", c.Backend.Type))
	}

	switch c.Artifacts.Backend {
	case ArtifactsMemory, ArtifactsPebble:
	case ArtifactsRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis artifact store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend))
	}

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	return errors.Join(errs...)
}
