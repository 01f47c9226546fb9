package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"webshrink/auth"
	"webshrink/config"
	"webshrink/failures"
	"webshrink/models"
	"webshrink/success"
)

func TestDetectKind(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	cases := []struct {
		path string
		data []byte
		want models.MediaKind
	}{
		{"clip.MP4", nil, models.KindVideo},
		{"photo.jpeg", nil, models.KindImage},
		{"noext", png, models.KindImage},
		{"notes.txt", []byte("plain text"), ""},
	}
	for _, c := range cases {
		if got := detectKind(c.path, c.data); got != c.want {
			t.Errorf("detectKind(%q): expected %q, got %q", c.path, c.want, got)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:              "512 B",
		2048:             "2.0 KiB",
		5 * config.MB:    "5.0 MiB",
		1536 * config.MB: "1.5 GiB",
	}
	for n, want := range cases {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d): expected %q, got %q", n, want, got)
		}
	}
}

func TestConvertFlagHelpNamesBothRanges(t *testing.T) {
	cmd := newConvertCommand(&commandContext{})
	quality := cmd.Flags().Lookup("quality").Usage
	for _, want := range []string{"webm CRF 0-63", "webp 0-100"} {
		if !strings.Contains(quality, want) {
			t.Errorf("Expected %q in quality help, got %q", want, quality)
		}
	}
	speed := cmd.Flags().Lookup("speed").Usage
	for _, want := range []string{"webm cpu-used 0-8", "webp method 0-6"} {
		if !strings.Contains(speed, want) {
			t.Errorf("Expected %q in speed help, got %q", want, speed)
		}
	}
}

func TestTokenCommand(t *testing.T) {
	secret := strings.Repeat("s", auth.MinSecretLen)
	t.Setenv("WEBSHRINK_AUTH_JWT_SECRET", secret)
	t.Setenv("WEBSHRINK_DATA_DIR", t.TempDir())

	out := captureStdout(t, func() {
		cmd := newRootCommand()
		cmd.SetArgs([]string{"token", "--subject", "ci", "--ttl", "1h", "--scope", "jobs"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	claims, err := auth.VerifyToken(lines[len(lines)-1], auth.VerifyConfig{SecretKey: []byte(secret)})
	if err != nil {
		t.Fatalf("Failed to verify issued token: %v", err)
	}
	if claims.Subject != "ci" {
		t.Errorf("Expected subject ci, got %q", claims.Subject)
	}
	if !claims.Allows("jobs") || claims.Allows("admin") {
		t.Errorf("Expected only the jobs scope, got %v", claims.Scopes)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("WEBSHRINK_AUTH_JWT_SECRET", "")
	t.Setenv("WEBSHRINK_DATA_DIR", t.TempDir())

	cmd := newRootCommand()
	cmd.SetArgs([]string{"token", "--subject", "ci"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected an error without auth.jwt_secret")
	}
}

func TestHistoryTables(t *testing.T) {
	if got := successTable(nil); got != "No successful jobs recorded" {
		t.Errorf("Unexpected empty success table: %q", got)
	}

	table := successTable([]success.SuccessRecord{{
		JobID:            "job-1",
		Timestamp:        time.Now(),
		Filename:         "clip-optimized.webm",
		InputSize:        2048,
		OutputSize:       1024,
		ReductionPercent: 50,
		Duration:         1500 * time.Millisecond,
	}})
	for _, want := range []string{"job-1", "clip-optimized.webm", "50.0%", "1.5s"} {
		if !strings.Contains(table, want) {
			t.Errorf("Expected success table to contain %q:\n%s", want, table)
		}
	}

	if !strings.Contains(table, "1 record") {
		t.Errorf("Expected a record count caption:\n%s", table)
	}

	longDetail := strings.Repeat("x", 2*detailWidth)
	table = failureTable([]failures.FailureRecord{
		{JobID: "job-2", Kind: failures.KindTimeout, Detail: "exceeded 30m0s"},
		{JobID: "job-3", Kind: failures.KindBackendError, Detail: longDetail},
	})
	if !strings.Contains(table, "job-2") || !strings.Contains(table, string(failures.KindTimeout)) {
		t.Errorf("Unexpected failure table:\n%s", table)
	}
	if strings.Contains(table, longDetail) {
		t.Errorf("Expected long details to wrap at %d columns:\n%s", detailWidth, table)
	}
	if !strings.Contains(table, "2 records") {
		t.Errorf("Expected a record count caption:\n%s", table)
	}
}

func TestHistoryCommandReadsLedger(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("WEBSHRINK_DATA_DIR", dataDir)

	cfg := config.Default()
	cfg.DataDir = dataDir
	store, err := success.Open(cfg.SuccessDBPath())
	if err != nil {
		t.Fatalf("Failed to open success ledger: %v", err)
	}
	if err := store.StoreSuccess(success.SuccessRecord{JobID: "ledger-job", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}
	store.Close()

	out := captureStdout(t, func() {
		cmd := newRootCommand()
		cmd.SetArgs([]string{"history"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("history failed: %v", err)
		}
	})
	if !strings.Contains(out, "ledger-job") {
		t.Errorf("Expected ledger-job in output:\n%s", out)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		done <- buf.Bytes()
	}()
	fn()
	w.Close()
	return string(<-done)
}
