// Package config loads inkbridge settings from INKBRIDGE_* environment
// variables. Both the client and the shell read the same variables so
// that they agree on the socket address.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "INKBRIDGE_"

// DefaultSocketName is the socket file created under the temp directory
// when SOCKET is unset.
const DefaultSocketName = "inkscape-scripting.sock"

// Config holds all inkbridge settings.
type Config struct {
	// Socket is the rendezvous address. Empty means $TMPDIR/inkscape-scripting.sock.
	Socket string `env:"SOCKET"`

	// ExtensionWindow matches the title of the extension dialog that the
	// shell activates to start the client.
	ExtensionWindow string `env:"EXTENSION_WINDOW" envDefault:"^Inkscape Scripting$"`

	// MainWindow matches the title of the main Inkscape window.
	MainWindow string `env:"MAIN_WINDOW" envDefault:" - Inkscape$"`

	// ActivationKeys are sent to the extension dialog, in xdotool syntax.
	ActivationKeys []string `env:"ACTIVATION_KEYS" envDefault:"Return" envSeparator:","`

	AcceptTimeout  time.Duration `env:"ACCEPT_TIMEOUT" envDefault:"1s"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"1s"`

	// SettleDelay is how long a pause waits after handing the document
	// back, so the Inkscape window can redraw before it is driven.
	SettleDelay time.Duration `env:"SETTLE_DELAY" envDefault:"300ms"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"warn"`
	LogDevelopment bool   `env:"LOG_DEV" envDefault:"false"`
	// LogFile additionally writes logs to this file. Useful for the
	// client, whose stderr only shows up in an Inkscape error dialog.
	LogFile string `env:"LOG_FILE"`
}

// Load parses the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Socket == "" {
		cfg.Socket = filepath.Join(os.TempDir(), DefaultSocketName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would make the handshake impossible.
func (c *Config) Validate() error {
	if c.AcceptTimeout <= 0 {
		return fmt.Errorf("accept timeout must be positive, got %s", c.AcceptTimeout)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay)
	}
	if len(c.ActivationKeys) == 0 {
		return fmt.Errorf("at least one activation key is required")
	}
	return nil
}
