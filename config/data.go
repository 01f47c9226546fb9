package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir is where webshrink keeps its databases when nothing else is configured.
// Priority: WEBSHRINK_DATA_DIR environment variable > "./data"
func DefaultDataDir() string {
	if dir := os.Getenv("WEBSHRINK_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// CredentialsDBPath returns the path of the export destination database.
// Path: {data_dir}/credentials.db
func (c Config) CredentialsDBPath() string {
	return filepath.Join(c.DataDir, "credentials.db")
}

// FailuresDBPath returns the path of the failed/cancelled job ledger.
// Path: {data_dir}/failures.db
func (c Config) FailuresDBPath() string {
	return filepath.Join(c.DataDir, "failures.db")
}

// SuccessDBPath returns the path of the succeeded job ledger.
// Path: {data_dir}/success.db
func (c Config) SuccessDBPath() string {
	return filepath.Join(c.DataDir, "success.db")
}

// ArtifactsDBPath returns the path used by the pebble artifact store.
// Path: {data_dir}/artifacts.db
func (c Config) ArtifactsDBPath() string {
	return filepath.Join(c.DataDir, "artifacts.db")
}

// ExportBaseDir is the root for the "local" export destination type. Only
// the server administrator can move it, via WEBSHRINK_EXPORT_DIR.
// Defaults to {data_dir}/exports.
func (c Config) ExportBaseDir() string {
	if dir := os.Getenv("WEBSHRINK_EXPORT_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(c.DataDir, "exports")
}
