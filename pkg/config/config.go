package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/scheduler"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultTimezone = "Asia/Ho_Chi_Minh"

// envPaths are tried in order, the first one found is loaded
var envPaths = []string{".env", "../.env", "../../.env"}

// Config holds everything the server and the CLI need
type Config struct {
	Port        string `yaml:"port"`
	GinMode     string `yaml:"gin_mode"`
	DatabaseURL string `yaml:"database_url"`
	DataPath    string `yaml:"data_path"`
	Timezone    string `yaml:"timezone"`

	StoreURL     string        `yaml:"store_url"`
	StoreTimeout time.Duration `yaml:"store_timeout"`

	FaceMatchURL     string        `yaml:"face_match_url"`
	FaceMatchField   string        `yaml:"face_match_field"`
	FaceMatchTimeout time.Duration `yaml:"face_match_timeout"`

	CaptureMaxSide     int `yaml:"capture_max_side"`
	CaptureJPEGQuality int `yaml:"capture_jpeg_quality"`

	// Demand is the number of employees wanted per shift type per day.
	Demand scheduler.Demand `yaml:"demand"`
	// HourCaps limits weekly hours per position. Zero means no cap.
	HourCaps scheduler.HourCaps `yaml:"hour_caps"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() Config {
	return Config{
		Port:               "8000",
		DataPath:           "shiftboard.db",
		Timezone:           DefaultTimezone,
		StoreURL:           "http://localhost:8000",
		StoreTimeout:       10 * time.Second,
		FaceMatchField:     "file",
		FaceMatchTimeout:   30 * time.Second,
		CaptureMaxSide:     640,
		CaptureJPEGQuality: 90,
		Demand: scheduler.Demand{
			models.ShiftDai1:  1,
			models.ShiftDai2:  1,
			models.ShiftNgan1: 1,
			models.ShiftNgan2: 1,
			models.ShiftNgan3: 1,
			models.ShiftNgan4: 1,
		},
		HourCaps: scheduler.HourCaps{
			models.PositionFullTime: 48,
			models.PositionPartTime: 24,
		},
	}
}

// LoadEnv loads the first .env file found
func LoadEnv() {
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by SHIFTBOARD_CONFIG and then the environment.
func Load() (Config, error) {
	LoadEnv()

	cfg := Defaults()
	if path := os.Getenv("SHIFTBOARD_CONFIG"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"PORT":             &c.Port,
		"GIN_MODE":         &c.GinMode,
		"DATABASE_URL":     &c.DatabaseURL,
		"DATA_PATH":        &c.DataPath,
		"TIMEZONE":         &c.Timezone,
		"STORE_URL":        &c.StoreURL,
		"FACE_MATCH_URL":   &c.FaceMatchURL,
		"FACE_MATCH_FIELD": &c.FaceMatchField,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"STORE_TIMEOUT":      &c.StoreTimeout,
		"FACE_MATCH_TIMEOUT": &c.FaceMatchTimeout,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"CAPTURE_MAX_SIDE":     &c.CaptureMaxSide,
		"CAPTURE_JPEG_QUALITY": &c.CaptureJPEGQuality,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func (c Config) validate() error {
	if c.CaptureJPEGQuality < 1 || c.CaptureJPEGQuality > 100 {
		return fmt.Errorf("capture_jpeg_quality must be 1-100, got %d", c.CaptureJPEGQuality)
	}
	if c.CaptureMaxSide < 0 {
		return fmt.Errorf("capture_max_side must not be negative")
	}
	for st, n := range c.Demand {
		if n < 0 {
			return fmt.Errorf("demand for %s must not be negative", st)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
