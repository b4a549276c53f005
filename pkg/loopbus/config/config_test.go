package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/loopbus/pkg/loopbus/config"
)

func TestNew(t *testing.T) {
	assert.NotNil(t, config.New(nil).Raw())
	assert.Equal(t, "v", config.New(map[string]any{"k": "v"}).Raw()["k"])
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"key exists", map[string]any{"name": "main"}, "main"},
		{"key missing", map[string]any{"other": "value"}, "default"},
		{"empty string", map[string]any{"name": ""}, ""},
		{"wrong type", map[string]any{"name": 123}, "default"},
		{"nil map", nil, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.New(tt.data).String("name", "default"))
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "250ms", 250 * time.Millisecond},
		{"int seconds", 3, 3 * time.Second},
		{"int64 seconds", int64(4), 4 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"invalid string", "soon", time.Minute},
		{"wrong type", true, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"timeout": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("timeout", time.Minute))
		})
	}

	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, time.Minute, config.New(nil).Duration("timeout", time.Minute))
	})
}

func TestBoolIntStringSlice(t *testing.T) {
	cfg := config.New(map[string]any{
		"enabled":  true,
		"count":    3,
		"ratio":    2.5,
		"whole":    float64(7),
		"names":    []any{"a", "b"},
		"mixed":    []any{"a", 1},
		"typed":    []string{"x"},
		"notabool": "yes",
	})

	assert.True(t, cfg.Bool("enabled", false))
	assert.False(t, cfg.Bool("notabool", false))
	assert.Equal(t, 3, cfg.Int("count", 0))
	assert.Equal(t, 0, cfg.Int("ratio", 0))
	assert.Equal(t, 7, cfg.Int("whole", 0))
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("names", nil))
	assert.Equal(t, []string{"d"}, cfg.StringSlice("mixed", []string{"d"}))
	assert.Equal(t, []string{"x"}, cfg.StringSlice("typed", nil))
	assert.True(t, cfg.Has("count"))
	assert.False(t, cfg.Has("missing"))
}

func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"log":  map[string]any{"level": "debug"},
		"flat": "value",
	})

	assert.Equal(t, "debug", cfg.Sub("log").String("level", "info"))
	assert.Equal(t, "info", cfg.Sub("flat").String("level", "info"))
	assert.Equal(t, "info", cfg.Sub("missing").String("level", "info"))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bus.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\nmetrics: true\n"), 0o600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Sub("log").String("level", ""))
		assert.True(t, cfg.Bool("metrics", false))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "bus.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"request_timeout": 2}`), 0o600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.Duration("request_timeout", 0))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "bus.ini")
		require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))

		_, err := config.FromFile(path)
		assert.ErrorContains(t, err, "unsupported config file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := config.FromYAML([]byte("a: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := config.FromJSON([]byte("{"))
		assert.Error(t, err)
	})
}

func TestDottedPaths(t *testing.T) {
	cfg := config.New(map[string]any{
		"log":        map[string]any{"level": "debug", "sink": map[string]any{"format": "json"}},
		"dotted.key": "literal",
		"flat":       "value",
	})

	assert.Equal(t, "debug", cfg.String("log.level", "info"))
	assert.Equal(t, "json", cfg.String("log.sink.format", "text"))
	assert.Equal(t, "literal", cfg.String("dotted.key", ""))
	assert.Equal(t, "fallback", cfg.String("flat.nested", "fallback"))
	assert.Equal(t, "json", cfg.Sub("log.sink").String("format", ""))

	assert.True(t, cfg.Has("log.sink.format"))
	assert.False(t, cfg.Has("log.missing"))
}

func TestFromJSONRequiresObject(t *testing.T) {
	_, err := config.FromJSON([]byte(`[1, 2]`))
	assert.ErrorContains(t, err, "not an object")

	_, err = config.FromJSON([]byte(`{"a":`))
	assert.ErrorContains(t, err, "invalid document")

	cfg, err := config.FromJSON([]byte(`{"log": {"level": "warn"}}`))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.String("log.level", ""))
}

func TestFromYAMLNonStringKeys(t *testing.T) {
	cfg, err := config.FromYAML([]byte("loops:\n  1: first\n  2: second\n"))
	require.NoError(t, err)
	assert.Equal(t, "second", cfg.String("loops.2", ""))
}
