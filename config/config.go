// config loads the viewer settings. The file uses an outer kind/def envelope,
// whose def is re-decoded into Config; environment variables prefixed with
// MAPVIEW_ override individual fields.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind is the only accepted value of the file's kind field.
const Kind = "mapview"

const envPrefix = "MAPVIEW"

// OuterConfig is the file layout: a kind selector and the definition itself.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Config holds everything the viewer needs to connect, draw and serve.
type Config struct {
	// Host is the exploration server's host:port, used for both the websocket and the triggers.
	Host string `yaml:"host"`
	// Secure selects wss and https.
	Secure bool `yaml:"secure"`
	// ReconnectDelay is the fixed wait between a closure and the next dial.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	// Greeting is sent once per connection.
	Greeting string `yaml:"greeting"`
	// ListenAddr is where the viewer page and snapshot are served.
	ListenAddr string `yaml:"listen_addr"`
	// SnapshotPath, if set, receives a png of every rendered frame.
	SnapshotPath string `yaml:"snapshot_path"`
	// CanvasRows and CanvasCols size the canvas in cells.
	CanvasRows int `yaml:"canvas_rows"`
	CanvasCols int `yaml:"canvas_cols"`
	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level"`
	// LogConsole selects human readable log output instead of json.
	LogConsole bool `yaml:"log_console"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Host:           "localhost:8881",
		ReconnectDelay: time.Second,
		Greeting:       "Initializing connection",
		ListenAddr:     ":8080",
		CanvasRows:     20,
		CanvasCols:     15,
		LogLevel:       "info",
		LogConsole:     true,
	}
}

// ErrWrongKind is returned when a config file declares another kind.
var ErrWrongKind = errors.New("config kind mismatch")

// HTTPBase returns the base url for trigger requests.
func (cfg *Config) HTTPBase() string {
	if cfg.Secure {
		return "https://" + cfg.Host
	}
	return "http://" + cfg.Host
}

// Validate rejects settings the viewer cannot run with.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Host == "":
		return errors.New("host is required")
	case cfg.ReconnectDelay <= 0:
		return fmt.Errorf("reconnect_delay must be positive, got %s", cfg.ReconnectDelay)
	case cfg.CanvasRows <= 0 || cfg.CanvasCols <= 0:
		return fmt.Errorf("canvas must be at least one cell, got %dx%d", cfg.CanvasRows, cfg.CanvasCols)
	}
	return nil
}

// FromYaml reads the file at path over the defaults, then applies env overrides.
// An empty path skips the file.
func FromYaml(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		vp := viper.New()
		vp.SetConfigFile(path)
		vp.SetConfigType("yaml")
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		outerConfig := &OuterConfig{}
		if err := vp.Unmarshal(outerConfig); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", path, err)
		}
		if outerConfig.Kind != Kind {
			return nil, fmt.Errorf("%s: kind %q: %w", path, outerConfig.Kind, ErrWrongKind)
		}

		// Round trip the def through yaml so the yaml tags, and time.Duration parsing, apply.
		// Viper lowercases keys, hence the snake_case tags.
		def, err := yaml.Marshal(outerConfig.Def)
		if err != nil {
			return nil, fmt.Errorf("marshal def: %w", err)
		}
		if err = yaml.Unmarshal(def, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal def: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from MAPVIEW_HOST, MAPVIEW_RECONNECT_DELAY, etc.
func applyEnv(cfg *Config) error {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.AutomaticEnv()

	if vp.IsSet("host") {
		cfg.Host = vp.GetString("host")
	}
	if vp.IsSet("secure") {
		cfg.Secure = vp.GetBool("secure")
	}
	if vp.IsSet("reconnect_delay") {
		delay, err := time.ParseDuration(vp.GetString("reconnect_delay"))
		if err != nil {
			return fmt.Errorf("%s_RECONNECT_DELAY: %w", envPrefix, err)
		}
		cfg.ReconnectDelay = delay
	}
	if vp.IsSet("greeting") {
		cfg.Greeting = vp.GetString("greeting")
	}
	if vp.IsSet("listen_addr") {
		cfg.ListenAddr = vp.GetString("listen_addr")
	}
	if vp.IsSet("snapshot_path") {
		cfg.SnapshotPath = vp.GetString("snapshot_path")
	}
	if vp.IsSet("canvas_rows") {
		cfg.CanvasRows = vp.GetInt("canvas_rows")
	}
	if vp.IsSet("canvas_cols") {
		cfg.CanvasCols = vp.GetInt("canvas_cols")
	}
	if vp.IsSet("log_level") {
		cfg.LogLevel = vp.GetString("log_level")
	}
	if vp.IsSet("log_console") {
		cfg.LogConsole = vp.GetBool("log_console")
	}
	return nil
}
