// Package config loads bitrate settings from defaults, an optional YAML
// file, BITRATE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autobrr/go-bitrate/internal/analysis"
)

const (
	AppName   = "bitrate"
	EnvPrefix = "BITRATE"
)

type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Jobs     int            `mapstructure:"jobs" validate:"min=1,max=64"`
}

type AnalysisConfig struct {
	WindowLength     float64 `mapstructure:"window_length" validate:"gt=0"`
	WindowStep       float64 `mapstructure:"window_step" validate:"omitempty,gt=0,ltefield=WindowLength"`
	MaxSamples       int     `mapstructure:"max_samples"`
	FrameRate        float64 `mapstructure:"frame_rate" validate:"gte=0"`
	FallbackDuration float64 `mapstructure:"fallback_duration" validate:"gte=0"`
	LinearScanLimit  int     `mapstructure:"linear_scan_limit"`
	MaxWindows       int     `mapstructure:"max_windows" validate:"gte=0"`
}

func (c AnalysisConfig) Options() analysis.Options {
	return analysis.Options{
		WindowLength:     c.WindowLength,
		WindowStep:       c.WindowStep,
		MaxSamples:       c.MaxSamples,
		FrameRate:        c.FrameRate,
		FallbackDuration: c.FallbackDuration,
		LinearScanLimit:  c.LinearScanLimit,
		MaxWindows:       c.MaxWindows,
	}
}

type ProbeConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=auto ffprobe mp4"`
	FFprobePath string        `mapstructure:"ffprobe_path" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir" validate:"required_if=Enabled true"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" validate:"oneof=text json csv svg"`
	File   string `mapstructure:"file"`
	Frames bool   `mapstructure:"frames"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Root         string        `mapstructure:"root"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"window":            "analysis.window_length",
	"step":              "analysis.window_step",
	"max-samples":       "analysis.max_samples",
	"frame-rate":        "analysis.frame_rate",
	"fallback-duration": "analysis.fallback_duration",
	"backend":           "probe.backend",
	"ffprobe":           "probe.ffprobe_path",
	"timeout":           "probe.timeout",
	"cache":             "cache.enabled",
	"cache-dir":         "cache.dir",
	"output":            "output.format",
	"logfile":           "output.file",
	"frames":            "output.frames",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"jobs":              "jobs",
	"addr":              "server.addr",
	"root":              "server.root",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.window_length", analysis.DefaultWindowLength)
	v.SetDefault("analysis.window_step", 0.0)
	v.SetDefault("analysis.max_samples", analysis.DefaultMaxSamples)
	v.SetDefault("analysis.frame_rate", 0.0)
	v.SetDefault("analysis.fallback_duration", 0.0)
	v.SetDefault("analysis.linear_scan_limit", analysis.DefaultLinearScanLimit)
	v.SetDefault("analysis.max_windows", analysis.DefaultMaxWindows)

	v.SetDefault("probe.backend", "auto")
	v.SetDefault("probe.ffprobe_path", "ffprobe")
	v.SetDefault("probe.timeout", 10*time.Minute)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dir", filepath.Join(xdg.CacheHome, AppName))
	v.SetDefault("cache.ttl", 30*24*time.Hour)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.file", "")
	v.SetDefault("output.frames", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.addr", "127.0.0.1:8085")
	v.SetDefault("server.root", "")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Minute)

	v.SetDefault("jobs", 2)
}

func searchPaths() []string {
	return []string{
		".",
		filepath.Join(xdg.ConfigHome, AppName),
		"/etc/" + AppName,
	}
}

// Load builds the effective configuration. path selects an explicit config
// file; when empty, config.yaml is looked up in the search paths and may be
// absent. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Probe.Backend = strings.ToLower(strings.TrimSpace(c.Probe.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
