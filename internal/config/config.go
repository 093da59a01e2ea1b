package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/seqlab/taxhist/internal/core/domain"
)

type Config struct {
	// Taxonomic hierarchy, most general rank first.
	Hierarchy []string

	// Input sources.
	Source       string // "files" (default) or "postgres"
	InputDir     string // directory of per-sample classification TSVs
	ManifestFile string // optional YAML manifest listing samples explicitly
	MetadataFile string // optional per-sample metadata TSV

	// Postgres source.
	DatabaseURL          string
	ClassificationsTable string // default: classifications
	MetadataTable        string // empty means no metadata

	// Output.
	OutputDir   string
	ChartWidth  int
	ChartHeight int

	// Logging.
	LogLevel  slog.Level
	LogFormat string // "text" (default) or "json"

	// Observability.
	OTelEnabled bool

	// CLI-only fields (not settable via env vars).
	AuditLog string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	Hierarchy    *string // comma-separated rank names
	Source       *string
	InputDir     *string
	ManifestFile *string
	MetadataFile *string
	DatabaseURL  *string
	OutputDir    *string
	LogLevel     *string
	LogFormat    *string
	ChartWidth   *int
	ChartHeight  *int
	OTelEnabled  bool
	AuditLog     string
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		Hierarchy:            domain.DefaultHierarchy(),
		Source:               "files",
		InputDir:             ".",
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ClassificationsTable: "classifications",
		OutputDir:            "out",
		ChartWidth:           1024,
		ChartHeight:          512,
		LogFormat:            "text",
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("TAXHIST_HIERARCHY"); v != "" {
		cfg.Hierarchy = splitList(v)
	}
	if v := os.Getenv("TAXHIST_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := os.Getenv("TAXHIST_INPUT_DIR"); v != "" {
		cfg.InputDir = v
	}
	cfg.ManifestFile = os.Getenv("TAXHIST_MANIFEST")
	cfg.MetadataFile = os.Getenv("TAXHIST_METADATA")

	if v := os.Getenv("TAXHIST_CLASSIFICATIONS_TABLE"); v != "" {
		cfg.ClassificationsTable = v
	}
	cfg.MetadataTable = os.Getenv("TAXHIST_METADATA_TABLE")

	if v := os.Getenv("TAXHIST_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("TAXHIST_CHART_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid TAXHIST_CHART_WIDTH value %q: must be a positive integer", v)
		}
		cfg.ChartWidth = n
	}
	if v := os.Getenv("TAXHIST_CHART_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid TAXHIST_CHART_HEIGHT value %q: must be a positive integer", v)
		}
		cfg.ChartHeight = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.Hierarchy != nil {
		cfg.Hierarchy = splitList(*o.Hierarchy)
	}
	if o.Source != nil {
		cfg.Source = *o.Source
	}
	if o.InputDir != nil {
		cfg.InputDir = *o.InputDir
	}
	if o.ManifestFile != nil {
		cfg.ManifestFile = *o.ManifestFile
	}
	if o.MetadataFile != nil {
		cfg.MetadataFile = *o.MetadataFile
	}
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.OutputDir != nil {
		cfg.OutputDir = *o.OutputDir
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.LogFormat != nil {
		cfg.LogFormat = *o.LogFormat
	}
	if o.ChartWidth != nil {
		if *o.ChartWidth <= 0 {
			return fmt.Errorf("invalid --chart-width value: must be a positive integer")
		}
		cfg.ChartWidth = *o.ChartWidth
	}
	if o.ChartHeight != nil {
		if *o.ChartHeight <= 0 {
			return fmt.Errorf("invalid --chart-height value: must be a positive integer")
		}
		cfg.ChartHeight = *o.ChartHeight
	}

	cfg.AuditLog = o.AuditLog
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if err := domain.Hierarchy(cfg.Hierarchy).Validate(); err != nil {
		return fmt.Errorf("invalid hierarchy: %w", err)
	}

	switch cfg.Source {
	case "files":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when source is \"postgres\" (set via env var or --database-url flag)")
		}
	default:
		return fmt.Errorf("invalid TAXHIST_SOURCE value %q: must be \"files\" or \"postgres\"", cfg.Source)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT value %q: must be \"text\" or \"json\"", cfg.LogFormat)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
