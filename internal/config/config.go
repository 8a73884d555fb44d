package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Extractor  ExtractorConfig
	Matcher    MatcherConfig
	Capture    CaptureConfig
	Gallery    GalleryConfig
	Attendance AttendanceConfig
	Database   DatabaseConfig
}

type ExtractorConfig struct {
	URL string // face-vector extraction service, e.g. http://localhost:8000
}

type MatcherConfig struct {
	Threshold float64 `yaml:"threshold"`
	Dimension int     `yaml:"dimension"`
}

type CaptureConfig struct {
	Scale              float64 `yaml:"scale"`
	SnapshotIntervalMs int     `yaml:"snapshot_interval_ms"`
	MaxFrames          int     `yaml:"max_frames"`
	SnapshotURL        string  `yaml:"-"` // camera snapshot endpoint for live sessions
}

// SnapshotInterval returns the polling interval as a duration.
func (c *CaptureConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMs) * time.Millisecond
}

type GalleryConfig struct {
	Dir string // directory of labeled reference images (filename stem = identity)
}

type AttendanceConfig struct {
	CSVPath string // append-only attendance CSV; empty disables the CSV store
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty disables Postgres storage
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// defaults mirrors the embedded defaults.yaml layout.
type defaults struct {
	Matcher MatcherConfig `yaml:"matcher"`
	Capture CaptureConfig `yaml:"capture"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// Embedded file, so this can only happen on a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Extractor: ExtractorConfig{
			URL: os.Getenv("EXTRACTOR_URL"),
		},
		Matcher: MatcherConfig{
			Threshold: envFloat("MATCH_THRESHOLD", def.Matcher.Threshold),
			Dimension: envInt("VECTOR_DIM", def.Matcher.Dimension),
		},
		Capture: CaptureConfig{
			Scale:              envFloat("CAPTURE_SCALE", def.Capture.Scale),
			SnapshotIntervalMs: envInt("SNAPSHOT_INTERVAL_MS", def.Capture.SnapshotIntervalMs),
			MaxFrames:          envInt("MAX_FRAMES", def.Capture.MaxFrames),
			SnapshotURL:        os.Getenv("CAMERA_SNAPSHOT_URL"),
		},
		Gallery: GalleryConfig{
			Dir: os.Getenv("GALLERY_DIR"),
		},
		Attendance: AttendanceConfig{
			CSVPath: os.Getenv("ATTENDANCE_CSV"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
	}
}
