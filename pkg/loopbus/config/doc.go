/*
Package config loads loopbus settings.

# Config

Config wraps a map[string]any decoded from YAML (gopkg.in/yaml.v3) or JSON
(github.com/tidwall/gjson) and provides typed
accessors that return a default when a key is missing or has the wrong type:

	cfg, err := config.FromFile("loopbus.yaml")
	timeout := cfg.Duration("request_timeout", 30*time.Second)
	level := cfg.String("log.level", "info")
	logCfg := cfg.Sub("log")

Keys may be dotted paths into nested maps. Duration accepts a string parsed with time.ParseDuration or a number of
seconds. Int accepts float64 only without a fractional part.

# Settings

Settings is the typed configuration of a bus. LoadSettings applies, in order:

  - DefaultSettings
  - the YAML or JSON file, if a path is given
  - LOOPBUS_* environment variables

	settings, err := config.LoadSettings(os.Getenv("LOOPBUS_CONFIG"))
	if err != nil {
	    log.Fatal(err)
	}
	bus, err := loopbus.Open(settings)

Environment variables: LOOPBUS_DEFAULT_LOOP, LOOPBUS_LOG_LEVEL,
LOOPBUS_LOG_FORMAT, LOOPBUS_METRICS, LOOPBUS_TRACING, LOOPBUS_DEAD_LETTERS,
LOOPBUS_REQUEST_TIMEOUT, LOOPBUS_SCRIPT_GLOBAL.

DeadLetters is empty (disabled), "memory", or the path of a SQLite database.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
