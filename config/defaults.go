package config

import "github.com/spf13/viper"

const (
	BackendLocal  = "local"
	BackendRemote = "remote"

	ArtifactsMemory = "memory"
	ArtifactsPebble = "pebble"
	ArtifactsRedis  = "redis"
)

const (
	MB = int64(1 << 20)

	DefaultMaxConcurrentJobs = 1
	DefaultMaxInputSizeVideo = 500 * MB
	DefaultMaxInputSizeImage = 50 * MB
	DefaultMaxJobDurationSec = 30 * 60
	DefaultJanitorInterval   = 60
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("engine.max_concurrent_jobs", DefaultMaxConcurrentJobs)
	v.SetDefault("engine.max_input_size_video", DefaultMaxInputSizeVideo)
	v.SetDefault("engine.max_input_size_image", DefaultMaxInputSizeImage)
	v.SetDefault("engine.max_job_duration", DefaultMaxJobDurationSec)
	v.SetDefault("engine.artifact_retention", 0)
	v.SetDefault("engine.job_retention", 0)
	v.SetDefault("engine.janitor_interval", DefaultJanitorInterval)

	v.SetDefault("backend.type", BackendLocal)
	v.SetDefault("backend.ffmpeg_path", "ffmpeg")
	v.SetDefault("backend.ffprobe_path", "ffprobe")
	v.SetDefault("backend.cwebp_path", "cwebp")
	v.SetDefault("backend.remote_url", "")
	v.SetDefault("backend.remote_retries", 3)

	v.SetDefault("artifacts.backend", ArtifactsMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 0) // derived from the media ceilings

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "webshrink")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}
