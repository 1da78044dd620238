// Package config loads runtime configuration for the wallet CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected via -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "10s" or
// integer nanoseconds:
//
//	db_path: /home/me/.config/zet-wallet/wallet.db
//	default_timeout_minutes: 5
//	require_reauth_on_restart: false
//	session_poll_interval: 10s
//	log_format: console
//
// The timeout and re-auth values are defaults only; once the user changes
// them in the app they are stored in the wallet database.
package config
