package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
)

// Config holds runtime settings for the wallet CLI.
//
// Fields:
//   - DBPath: SQLite file holding credentials, the secured wallet and metadata.
//   - DeviceSecretPath: 32-byte secret sealing software authenticator credentials.
//   - RPID, Origin: relying party identity presented to the authenticator.
//   - UserName: display name attached to new credentials.
//   - DefaultTimeoutMinutes: inactivity timeout used until the user sets one.
//   - RequireReauthOnRestart: default for the "always ask on start" setting.
//   - SessionPollInterval: how often the inactivity checker wakes up.
//   - LogFormat, LogLevel: see logging.New.
type Config struct {
	DBPath                 string
	DeviceSecretPath       string
	RPID                   string
	Origin                 string
	UserName               string
	DefaultTimeoutMinutes  int
	RequireReauthOnRestart bool
	SessionPollInterval    time.Duration
	LogFormat              string
	LogLevel               string
}

// LoadDefaults populates c with sensible defaults. Files live under the
// user config directory, or the working directory when that is unknown.
func (c *Config) LoadDefaults() {
	dir := "."
	if base, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(base, "zet-wallet")
	}
	c.DBPath = filepath.Join(dir, "wallet.db")
	c.DeviceSecretPath = filepath.Join(dir, "device.key")
	c.RPID = "wallet.zet.money"
	c.Origin = "app://wallet.zet.money"
	c.UserName = "Zet Wallet"
	c.DefaultTimeoutMinutes = 5
	c.RequireReauthOnRestart = false
	c.SessionPollInterval = 10 * time.Second
	c.LogFormat = logging.FormatText
	c.LogLevel = "info"
}

// Validate rejects settings the rest of the client cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("db path is empty")
	case c.RPID == "":
		return fmt.Errorf("rp id is empty")
	case c.DefaultTimeoutMinutes < 1:
		return fmt.Errorf("timeout must be at least 1 minute, got %d", c.DefaultTimeoutMinutes)
	case c.SessionPollInterval <= 0:
		return fmt.Errorf("session poll interval must be positive")
	}
	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a JSON or YAML file (if -c/-config is given) and command-line flags. Later
// sources take precedence over earlier ones. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
