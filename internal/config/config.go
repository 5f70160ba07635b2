package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// Extra browser origins allowed on /ws, e.g. "localhost:5173". Same-host
	// requests are always accepted.
	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	RevealAttempts     int           `env:"REVEAL_ATTEMPTS" envDefault:"100"`
	RevealPollInterval time.Duration `env:"REVEAL_POLL_INTERVAL" envDefault:"100ms"`

	TimerMaxSeconds     int `env:"TIMER_MAX_SECONDS" envDefault:"3600"`
	TimerDefaultSeconds int `env:"TIMER_DEFAULT_SECONDS" envDefault:"300"`

	MaxPlayerNameLength int `env:"MAX_PLAYER_NAME_LENGTH" envDefault:"50"`

	OBSEnabled  bool   `env:"OBS_ENABLED" envDefault:"false"`
	OBSAddr     string `env:"OBS_ADDR" envDefault:"localhost:4455"`
	OBSPassword string `env:"OBS_PASSWORD" envDefault:"dev_only"`

	// Empty disables the session archive.
	DatabaseURL string `env:"DATABASE_URL"`

	SoundDir string `env:"SOUND_DIR" envDefault:"assets/sound_fx"`
	// Empty disables playback.
	SoundCommand string `env:"SOUND_COMMAND" envDefault:"aplay"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load reads an optional .env file (or the given files) into the process
// environment, then parses and validates the configuration. Variables that
// are already set win over the files.
func Load(files ...string) (Config, error) {
	if err := loadDotenv(files); err != nil {
		return Config{}, err
	}
	return Parse()
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.HTTPAddr != "", "HTTP_ADDR must not be empty")
	check(c.RevealAttempts >= 1, "REVEAL_ATTEMPTS must be at least 1, got %d", c.RevealAttempts)
	check(c.RevealPollInterval > 0, "REVEAL_POLL_INTERVAL must be positive, got %s", c.RevealPollInterval)
	check(c.TimerMaxSeconds > 0, "TIMER_MAX_SECONDS must be positive, got %d", c.TimerMaxSeconds)
	check(c.TimerDefaultSeconds >= 0 && c.TimerDefaultSeconds <= c.TimerMaxSeconds,
		"TIMER_DEFAULT_SECONDS must be within 0..%d, got %d", c.TimerMaxSeconds, c.TimerDefaultSeconds)
	check(c.MaxPlayerNameLength >= 1, "MAX_PLAYER_NAME_LENGTH must be at least 1, got %d", c.MaxPlayerNameLength)
	check(!c.OBSEnabled || c.OBSAddr != "", "OBS_ADDR is required when OBS_ENABLED is set")
	return err
}
