// Package config loads the quickdraw settings from a YAML file, a .env file
// and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/arena"
	"github.com/mcdev12/quickdraw/go/internal/duel/publisher"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when DUEL_CONFIG is unset
const DefaultPath = "quickdraw.yaml"

type Config struct {
	Duel struct {
		MinWaitSec        float64 `yaml:"min_wait_sec"`
		MaxWaitSec        float64 `yaml:"max_wait_sec"`
		ReactionWindowSec float64 `yaml:"reaction_window_sec"`
		ResetDelaySec     float64 `yaml:"reset_delay_sec"`
	} `yaml:"duel"`

	Arena struct {
		MaxAmmo int `yaml:"max_ammo"`
	} `yaml:"arena"`

	Gateway struct {
		Port string `yaml:"port"`
	} `yaml:"gateway"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the settings used when nothing overrides them
func Default() Config {
	var c Config
	d := duel.DefaultConfig()
	c.Duel.MinWaitSec = d.MinWait.Seconds()
	c.Duel.MaxWaitSec = d.MaxWait.Seconds()
	c.Duel.ReactionWindowSec = d.ReactionWindow.Seconds()
	c.Duel.ResetDelaySec = d.ResetDelay.Seconds()

	c.Arena.MaxAmmo = arena.DefaultMaxAmmo
	c.Gateway.Port = "8081"

	js := publisher.DefaultJetStreamConfig()
	c.NATS.URL = js.URL
	c.NATS.Stream = js.StreamName
	c.NATS.SubjectPrefix = js.SubjectPrefix

	c.Log.Level = "info"
	return c
}

// Load reads .env, then the YAML file named by DUEL_CONFIG (or DefaultPath),
// then applies environment overrides. A missing file leaves the defaults in
// place. The resulting duel timing is validated.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return LoadFile(getEnv("DUEL_CONFIG", DefaultPath))
}

// LoadFile is Load without the .env step
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Duel.MinWaitSec = getEnvAsFloat("DUEL_MIN_WAIT_SEC", cfg.Duel.MinWaitSec)
	cfg.Duel.MaxWaitSec = getEnvAsFloat("DUEL_MAX_WAIT_SEC", cfg.Duel.MaxWaitSec)
	cfg.Duel.ReactionWindowSec = getEnvAsFloat("DUEL_REACTION_WINDOW_SEC", cfg.Duel.ReactionWindowSec)
	cfg.Duel.ResetDelaySec = getEnvAsFloat("DUEL_RESET_DELAY_SEC", cfg.Duel.ResetDelaySec)
	cfg.Gateway.Port = getEnv("GATEWAY_PORT", cfg.Gateway.Port)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Enabled = getEnvAsBool("NATS_ENABLED", cfg.NATS.Enabled)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if err := cfg.DuelConfig().Validate(); err != nil {
		return Config{}, err
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	return cfg, nil
}

// DuelConfig converts the second-based settings to coordinator timing
func (c Config) DuelConfig() duel.Config {
	return duel.Config{
		MinWait:        seconds(c.Duel.MinWaitSec),
		MaxWait:        seconds(c.Duel.MaxWaitSec),
		ReactionWindow: seconds(c.Duel.ReactionWindowSec),
		ResetDelay:     seconds(c.Duel.ResetDelaySec),
	}
}

// JetStreamConfig returns the publisher settings with the configured overrides
func (c Config) JetStreamConfig() publisher.JetStreamConfig {
	js := publisher.DefaultJetStreamConfig()
	js.URL = c.NATS.URL
	if c.NATS.Stream != "" {
		js.StreamName = c.NATS.Stream
	}
	if c.NATS.SubjectPrefix != "" {
		js.SubjectPrefix = c.NATS.SubjectPrefix
	}
	return js
}

// LogLevel returns the parsed log level, falling back to info
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
