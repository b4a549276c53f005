package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Dead-letter targets understood by Settings.DeadLetters besides a file path.
const (
	DeadLettersOff    = ""
	DeadLettersMemory = "memory"
)

// Settings configures a Bus opened with loopbus.Open.
type Settings struct {
	DefaultLoop    string        `env:"LOOPBUS_DEFAULT_LOOP"`
	LogLevel       string        `env:"LOOPBUS_LOG_LEVEL"`
	LogFormat      string        `env:"LOOPBUS_LOG_FORMAT"`
	Metrics        bool          `env:"LOOPBUS_METRICS"`
	Tracing        bool          `env:"LOOPBUS_TRACING"`
	DeadLetters    string        `env:"LOOPBUS_DEAD_LETTERS"`
	RequestTimeout time.Duration `env:"LOOPBUS_REQUEST_TIMEOUT"`
	ScriptGlobal   string        `env:"LOOPBUS_SCRIPT_GLOBAL"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		DefaultLoop:    "main",
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: 30 * time.Second,
		ScriptGlobal:   "bus",
	}
}

// LoadSettings layers defaults, the file at path (skipped when path is
// empty), and LOOPBUS_* environment variables, in that order.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s = SettingsFromConfig(cfg, s)
	}

	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// SettingsFromConfig overlays the values present in cfg onto base.
//
//	loop:
//	  default: main
//	log:
//	  level: debug
//	  format: json
//	metrics: true
//	tracing: false
//	dead_letters: ./dead.db
//	request_timeout: 5s
//	script:
//	  global: bus
func SettingsFromConfig(cfg Config, base Settings) Settings {
	s := base
	s.DefaultLoop = cfg.String("loop.default", s.DefaultLoop)
	s.LogLevel = cfg.String("log.level", s.LogLevel)
	s.LogFormat = cfg.String("log.format", s.LogFormat)
	s.Metrics = cfg.Bool("metrics", s.Metrics)
	s.Tracing = cfg.Bool("tracing", s.Tracing)
	s.DeadLetters = cfg.String("dead_letters", s.DeadLetters)
	s.RequestTimeout = cfg.Duration("request_timeout", s.RequestTimeout)
	s.ScriptGlobal = cfg.String("script.global", s.ScriptGlobal)
	return s
}

// Validate reports the first invalid field.
func (s Settings) Validate() error {
	if s.DefaultLoop == "" {
		return errors.New("default loop name must not be empty")
	}
	if _, err := s.Level(); err != nil {
		return err
	}
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", s.LogFormat)
	}
	if s.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative: %s", s.RequestTimeout)
	}
	if s.ScriptGlobal == "" {
		return errors.New("script global name must not be empty")
	}
	return nil
}

// Level parses LogLevel.
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// Logger builds a slog logger writing to w in the configured format and level.
// An invalid level falls back to info.
func (s Settings) Logger(w io.Writer) *slog.Logger {
	level, err := s.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
