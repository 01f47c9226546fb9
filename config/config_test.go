package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Engine.MaxConcurrentJobs != 1 {
		t.Errorf("Expected default concurrency 1, got %d", cfg.Engine.MaxConcurrentJobs)
	}
	if cfg.Engine.MaxInputSizeVideo != 500*MB {
		t.Errorf("Expected 500MB video ceiling, got %d", cfg.Engine.MaxInputSizeVideo)
	}
	if cfg.Engine.MaxInputSizeImage != 50*MB {
		t.Errorf("Expected 50MB image ceiling, got %d", cfg.Engine.MaxInputSizeImage)
	}
	if cfg.Engine.MaxJobDuration() != 30*time.Minute {
		t.Errorf("Expected 30m job duration, got %v", cfg.Engine.MaxJobDuration())
	}
	if cfg.Engine.ArtifactRetention() != 0 {
		t.Errorf("Expected session-lifetime artifact retention, got %v", cfg.Engine.ArtifactRetention())
	}
	if cfg.Artifacts.Backend != ArtifactsMemory {
		t.Errorf("Expected memory artifact store, got %s", cfg.Artifacts.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webshrink.yaml")
	content := `
data_dir: ` + dir + `
engine:
  max_concurrent_jobs: 2
  max_job_duration: 60
  artifact_retention: 86400
artifacts:
  backend: pebble
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("WEBSHRINK_ENGINE_MAX_CONCURRENT_JOBS", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Engine.MaxConcurrentJobs != 4 {
		t.Errorf("Expected env override of 4, got %d", cfg.Engine.MaxConcurrentJobs)
	}
	if cfg.Engine.MaxJobDuration() != time.Minute {
		t.Errorf("Expected 1m job duration, got %v", cfg.Engine.MaxJobDuration())
	}
	if cfg.Engine.ArtifactRetention() != 24*time.Hour {
		t.Errorf("Expected 24h retention, got %v", cfg.Engine.ArtifactRetention())
	}
	if cfg.Artifacts.Backend != ArtifactsPebble {
		t.Errorf("Expected pebble artifact store, got %s", cfg.Artifacts.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.Log.Level)
	}
	if cfg.Engine.MaxInputSizeImage != 50*MB {
		t.Errorf("Unset keys should keep defaults, got %d", cfg.Engine.MaxInputSizeImage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Engine.MaxConcurrentJobs = 0
	cfg.Backend.Type = BackendRemote
	cfg.Artifacts.Backend = "tape"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"max_concurrent_jobs", "remote_url", "tape"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in validation error, got %q", want, msg)
		}
	}
}

func TestDataPaths(t *testing.T) {
	t.Setenv("WEBSHRINK_EXPORT_DIR", "")
	cfg := Config{DataDir: "/srv/webshrink"}

	cases := map[string]string{
		cfg.CredentialsDBPath(): filepath.Join("/srv/webshrink", "credentials.db"),
		cfg.FailuresDBPath():    filepath.Join("/srv/webshrink", "failures.db"),
		cfg.SuccessDBPath():     filepath.Join("/srv/webshrink", "success.db"),
		cfg.ArtifactsDBPath():   filepath.Join("/srv/webshrink", "artifacts.db"),
		cfg.ExportBaseDir():     filepath.Join("/srv/webshrink", "exports"),
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("Expected path %s, got %s", want, got)
		}
	}

	t.Setenv("WEBSHRINK_EXPORT_DIR", "/mnt/exports")
	if got := cfg.ExportBaseDir(); got != "/mnt/exports" {
		t.Errorf("Expected export dir override, got %s", got)
	}
}

func TestDefaultDataDirEnv(t *testing.T) {
	t.Setenv("WEBSHRINK_DATA_DIR", "/tmp/webshrink-test-data")
	if got := DefaultDataDir(); got != "/tmp/webshrink-test-data" {
		t.Errorf("Expected env data dir, got %s", got)
	}
}

func TestUploadCeilingFollowsMediaCeilings(t *testing.T) {
	cfg := Default()
	if cfg.Server.MaxUploadBytes != 501*MB {
		t.Errorf("Expected default upload ceiling of 501MB, got %d", cfg.Server.MaxUploadBytes)
	}

	t.Setenv("WEBSHRINK_ENGINE_MAX_INPUT_SIZE_VIDEO", "2147483648")
	loaded, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if want := int64(2147483648) + MB; loaded.Server.MaxUploadBytes != want {
		t.Errorf("Expected upload ceiling %d, got %d", want, loaded.Server.MaxUploadBytes)
	}

	t.Setenv("WEBSHRINK_SERVER_MAX_UPLOAD_BYTES", "4096")
	explicit, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if explicit.Server.MaxUploadBytes != 4096 {
		t.Errorf("An explicit upload ceiling should win, got %d", explicit.Server.MaxUploadBytes)
	}
}
