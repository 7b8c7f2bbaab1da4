package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/onurdenizs/sub-net/internal/network"
	"github.com/onurdenizs/sub-net/internal/platform"
	"github.com/onurdenizs/sub-net/internal/segment"
	"github.com/onurdenizs/sub-net/internal/stitch"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// DefaultLineIDs are the lines that make up the sub-network. 250 is listed
// twice in the source list; duplicates are ignored when grouping.
var DefaultLineIDs = []int{850, 751, 710, 650, 540, 450, 250, 100, 501, 500, 722, 723, 720, 890, 900, 150, 200, 210, 410, 250, 400, 452}

// DefaultProtectedStations must stay endpoints of the stitched network
var DefaultProtectedStations = []string{"LZ", "BS", "BN", "ZUE", "LS", "GE"}

// Config holds all configuration for the stitching run and the API
type Config struct {
	// Inputs
	SegmentsPath  string
	PlatformsPath string

	// Outputs
	OutputDir    string
	DatabasePath string
	RunRetention int

	// API
	APIPort     string
	CORSOrigins []string

	// Network selection
	LineIDs           []int
	ProtectedStations []string

	// Platforms
	MinPlatformLength     float64
	MaxPlatformLength     float64
	DefaultPlatformLength float64
	MinPlatformCount      int
	MaxPlatformCount      int
	DefaultPlatformCount  int
	DecisionMethod        string
	FillLengthMethod      string
	FillCountMethod       string

	// Stitching and entry nodes
	EntryOffsetBuffer float64
	MinMainLineLength float64
	// Threshold overrides the derived closeness threshold when positive
	Threshold     float64
	CloseDistance float64
	Workers       int

	Debug bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		SegmentsPath:  getEnv("SEGMENTS_CSV", "data/raw/linie_mit_polygon.csv"),
		PlatformsPath: getEnv("PLATFORMS_CSV", "data/raw/perronkante.csv"),

		OutputDir:    getEnv("OUTPUT_DIR", "data/processed"),
		DatabasePath: getEnv("SQLITE_DATABASE", "data/sub_net.db"),
		RunRetention: getEnvInt("RUN_RETENTION", 10),

		APIPort:     getEnv("PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		LineIDs:           getEnvIntList("LINE_IDS", DefaultLineIDs),
		ProtectedStations: getEnvList("NEVER_SKIP_STATIONS", DefaultProtectedStations),

		MinPlatformLength:     getEnvFloat("MIN_PLATFORM_LENGTH", 200),
		MaxPlatformLength:     getEnvFloat("MAX_PLATFORM_LENGTH", 500),
		DefaultPlatformLength: getEnvFloat("DEFAULT_PLATFORM_LENGTH", 350),
		MinPlatformCount:      getEnvInt("MIN_PLATFORM_COUNT", 2),
		MaxPlatformCount:      getEnvInt("MAX_PLATFORM_COUNT", 20),
		DefaultPlatformCount:  getEnvInt("DEFAULT_PLATFORM_COUNT", 5),
		DecisionMethod:        getEnv("PLATFORM_LENGTH_DECISION_METHOD", "X"),
		FillLengthMethod:      getEnv("FILL_EMPTY_PLATFORM_LENGTH_DATA_WITH", "N"),
		FillCountMethod:       getEnv("FILL_EMPTY_PLATFORM_NO_DATA_WITH", "N"),

		EntryOffsetBuffer: getEnvFloat("ENTRY_OFFSET_BUFFER", 200),
		MinMainLineLength: getEnvFloat("MIN_MAIN_LINE_LENGTH", 200),
		Threshold:         getEnvFloat("CLOSENESS_THRESHOLD", 0),
		CloseDistance:     getEnvFloat("CLOSE_DISTANCE", network.DefaultCloseDistance),
		Workers:           getEnvInt("WORKERS", runtime.NumCPU()),

		Debug: getEnvBool("DEBUG", false),
	}
}

// fileConfig is the YAML layout. Pointers distinguish "unset" from zero.
type fileConfig struct {
	Inputs struct {
		Segments  string `yaml:"segments"`
		Platforms string `yaml:"platforms"`
	} `yaml:"inputs"`
	Outputs struct {
		Dir       string `yaml:"dir"`
		Database  string `yaml:"database"`
		Retention *int   `yaml:"retention"`
	} `yaml:"outputs"`
	Lines             []int    `yaml:"lines"`
	ProtectedStations []string `yaml:"protected_stations"`
	Platforms         struct {
		MinLength     *float64 `yaml:"min_length"`
		MaxLength     *float64 `yaml:"max_length"`
		DefaultLength *float64 `yaml:"default_length"`
		MinCount      *int     `yaml:"min_count"`
		MaxCount      *int     `yaml:"max_count"`
		DefaultCount  *int     `yaml:"default_count"`
		Method        string   `yaml:"method"`
		FillLength    string   `yaml:"fill_length"`
		FillCount     string   `yaml:"fill_count"`
	} `yaml:"platforms"`
	Stitching struct {
		EntryOffsetBuffer *float64 `yaml:"entry_offset_buffer"`
		MinMainLineLength *float64 `yaml:"min_main_line_length"`
		Threshold         *float64 `yaml:"closeness_threshold"`
		CloseDistance     *float64 `yaml:"close_distance"`
		Workers           *int     `yaml:"workers"`
	} `yaml:"stitching"`
}

// LoadFile loads the environment configuration and overlays the YAML file at
// path on top of it. Values present in the file win.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	setString(&cfg.SegmentsPath, fc.Inputs.Segments)
	setString(&cfg.PlatformsPath, fc.Inputs.Platforms)
	setString(&cfg.OutputDir, fc.Outputs.Dir)
	setString(&cfg.DatabasePath, fc.Outputs.Database)
	set(&cfg.RunRetention, fc.Outputs.Retention)

	if len(fc.Lines) > 0 {
		cfg.LineIDs = fc.Lines
	}
	if len(fc.ProtectedStations) > 0 {
		cfg.ProtectedStations = fc.ProtectedStations
	}

	p := fc.Platforms
	set(&cfg.MinPlatformLength, p.MinLength)
	set(&cfg.MaxPlatformLength, p.MaxLength)
	set(&cfg.DefaultPlatformLength, p.DefaultLength)
	set(&cfg.MinPlatformCount, p.MinCount)
	set(&cfg.MaxPlatformCount, p.MaxCount)
	set(&cfg.DefaultPlatformCount, p.DefaultCount)
	setString(&cfg.DecisionMethod, p.Method)
	setString(&cfg.FillLengthMethod, p.FillLength)
	setString(&cfg.FillCountMethod, p.FillCount)

	s := fc.Stitching
	set(&cfg.EntryOffsetBuffer, s.EntryOffsetBuffer)
	set(&cfg.MinMainLineLength, s.MinMainLineLength)
	set(&cfg.Threshold, s.Threshold)
	set(&cfg.CloseDistance, s.CloseDistance)
	set(&cfg.Workers, s.Workers)

	return cfg, nil
}

// ClosenessThreshold is the minimum stitched segment length: a maximal
// platform, the entry buffer on both sides and a main-line stretch.
func (c *Config) ClosenessThreshold() float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	return c.MaxPlatformLength + 2*c.EntryOffsetBuffer + c.MinMainLineLength
}

// Validate reports every inconsistent setting
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.MinPlatformLength <= 0 || c.MaxPlatformLength <= 0 || c.DefaultPlatformLength <= 0 {
		add("platform lengths must be positive")
	}
	if c.MinPlatformLength > c.MaxPlatformLength {
		add("min platform length %.0f exceeds max %.0f", c.MinPlatformLength, c.MaxPlatformLength)
	}
	if c.MinPlatformCount < 0 || c.MinPlatformCount > c.MaxPlatformCount {
		add("platform count bounds [%d, %d] are invalid", c.MinPlatformCount, c.MaxPlatformCount)
	}
	if _, err := platform.ParseMethod(c.DecisionMethod); err != nil {
		add("decision method: %v", err)
	}
	for _, f := range []struct{ name, method string }{
		{"fill length", c.FillLengthMethod},
		{"fill count", c.FillCountMethod},
	} {
		switch platform.Method(f.method) {
		case platform.MethodMax, platform.MethodMin, platform.MethodDefault:
		default:
			add("%s method %q must be X, N or D", f.name, f.method)
		}
	}
	if c.EntryOffsetBuffer < 0 || c.MinMainLineLength < 0 {
		add("entry offset buffer and main line length must not be negative")
	}
	if c.ClosenessThreshold() <= 0 {
		add("closeness threshold must be positive")
	}
	if c.Workers < 1 {
		add("workers must be at least 1, got %d", c.Workers)
	}
	if c.RunRetention < 1 {
		add("run retention must be at least 1, got %d", c.RunRetention)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Protected returns the protected station set
func (c *Config) Protected() segment.StationSet {
	return segment.NewStationSet(c.ProtectedStations...)
}

// StitchOptions returns the stitcher parameters
func (c *Config) StitchOptions() stitch.Options {
	return stitch.Options{
		Threshold: c.ClosenessThreshold(),
		Protected: c.Protected(),
		Workers:   c.Workers,
	}
}

// EntryOptions returns the entry-node locator parameters
func (c *Config) EntryOptions() network.EntryOptions {
	return network.EntryOptions{Buffer: c.EntryOffsetBuffer}
}

// PlatformPolicy returns the platform-length decision policy. Call Validate first.
func (c *Config) PlatformPolicy() platform.Policy {
	return platform.Policy{
		MinLength:     c.MinPlatformLength,
		MaxLength:     c.MaxPlatformLength,
		DefaultLength: c.DefaultPlatformLength,
		MinCount:      c.MinPlatformCount,
		MaxCount:      c.MaxPlatformCount,
		DefaultCount:  c.DefaultPlatformCount,
		Method:        platform.Method(c.DecisionMethod),
		FillLength:    platform.Method(c.FillLengthMethod),
		FillCount:     platform.Method(c.FillCountMethod),
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits on commas and whitespace
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return defaultValue
	}
	return fields
}

func getEnvIntList(key string, defaultValue []int) []int {
	fields := getEnvList(key, nil)
	if fields == nil {
		return defaultValue
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
