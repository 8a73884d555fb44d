package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EXTRACTOR_URL", "MATCH_THRESHOLD", "VECTOR_DIM", "CAPTURE_SCALE",
		"SNAPSHOT_INTERVAL_MS", "MAX_FRAMES", "CAMERA_SNAPSHOT_URL",
		"GALLERY_DIR", "ATTENDANCE_CSV", "DATABASE_URL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_EmbeddedDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Matcher.Threshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %f", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.Dimension != 128 {
		t.Errorf("expected default dimension 128, got %d", cfg.Matcher.Dimension)
	}
	if cfg.Capture.Scale != 0.25 {
		t.Errorf("expected default scale 0.25, got %f", cfg.Capture.Scale)
	}
	if cfg.Capture.SnapshotInterval() != 200*time.Millisecond {
		t.Errorf("expected default snapshot interval 200ms, got %v", cfg.Capture.SnapshotInterval())
	}
	if cfg.Capture.MaxFrames != 0 {
		t.Errorf("expected unbounded frames by default, got %d", cfg.Capture.MaxFrames)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCH_THRESHOLD", "0.45")
	t.Setenv("VECTOR_DIM", "512")
	t.Setenv("EXTRACTOR_URL", "http://extractor:8000")
	t.Setenv("GALLERY_DIR", "/data/references")
	t.Setenv("ATTENDANCE_CSV", "/data/attendance.csv")
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")

	cfg := Load()

	if cfg.Matcher.Threshold != 0.45 {
		t.Errorf("expected threshold 0.45, got %f", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.Dimension != 512 {
		t.Errorf("expected dimension 512, got %d", cfg.Matcher.Dimension)
	}
	if cfg.Extractor.URL != "http://extractor:8000" {
		t.Errorf("unexpected extractor URL %q", cfg.Extractor.URL)
	}
	if cfg.Gallery.Dir != "/data/references" {
		t.Errorf("unexpected gallery dir %q", cfg.Gallery.Dir)
	}
	if cfg.Attendance.CSVPath != "/data/attendance.csv" {
		t.Errorf("unexpected csv path %q", cfg.Attendance.CSVPath)
	}
	if cfg.Database.URL != "postgres://localhost/attendance" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
}

func TestLoad_InvalidEnvFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCH_THRESHOLD", "not-a-number")
	t.Setenv("VECTOR_DIM", "-5")

	cfg := Load()

	if cfg.Matcher.Threshold != 0.6 {
		t.Errorf("expected fallback threshold 0.6, got %f", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.Dimension != 128 {
		t.Errorf("expected fallback dimension 128, got %d", cfg.Matcher.Dimension)
	}
}

func TestLoad_DatabasePoolDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected 5 max idle conns, got %d", cfg.Database.MaxIdleConns)
	}
}
