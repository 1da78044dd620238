package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zet-money/zet-wallet-sub000/internal/flagx"
	"github.com/Zet-money/zet-wallet-sub000/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is a DTO for config files. Pointer fields distinguish "absent"
// from a zero value so a partial file only overrides what it names.
type fileConfig struct {
	DBPath                 *string         `json:"db_path" yaml:"db_path"`
	DeviceSecretPath       *string         `json:"device_secret_path" yaml:"device_secret_path"`
	RPID                   *string         `json:"rp_id" yaml:"rp_id"`
	Origin                 *string         `json:"origin" yaml:"origin"`
	UserName               *string         `json:"user_name" yaml:"user_name"`
	DefaultTimeoutMinutes  *int            `json:"default_timeout_minutes" yaml:"default_timeout_minutes"`
	RequireReauthOnRestart *bool           `json:"require_reauth_on_restart" yaml:"require_reauth_on_restart"`
	SessionPollInterval    *timex.Duration `json:"session_poll_interval" yaml:"session_poll_interval"`
	LogFormat              *string         `json:"log_format" yaml:"log_format"`
	LogLevel               *string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays cfg with the file named by -c/-config. Files ending in
// .yaml or .yml are YAML, anything else is JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setIf(&cfg.DBPath, fc.DBPath)
	setIf(&cfg.DeviceSecretPath, fc.DeviceSecretPath)
	setIf(&cfg.RPID, fc.RPID)
	setIf(&cfg.Origin, fc.Origin)
	setIf(&cfg.UserName, fc.UserName)
	setIf(&cfg.DefaultTimeoutMinutes, fc.DefaultTimeoutMinutes)
	setIf(&cfg.RequireReauthOnRestart, fc.RequireReauthOnRestart)
	setIf(&cfg.LogFormat, fc.LogFormat)
	setIf(&cfg.LogLevel, fc.LogLevel)
	if fc.SessionPollInterval != nil {
		cfg.SessionPollInterval = fc.SessionPollInterval.Duration
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
