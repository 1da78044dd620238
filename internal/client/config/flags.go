package config

import (
	"flag"
	"io"
	"strings"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   database path
//	-t int      default inactivity timeout in minutes
//	-p int      inactivity poll interval in seconds
//	-r          require biometric re-auth on every start (-r=false to clear)
//	-l string   log format: text, json or console
//
// Unknown flags are filtered out with flagx.FilterArgs so that -c/-config
// and flags of other components do not interfere.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-d", "-t", "-p", "-l"})
	// -r is boolean and never takes a separate value token
	filtered = append(filtered, boolArgs(args, "-r")...)

	fs := flag.NewFlagSet("wallet", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "database path")
	fs.IntVar(&cfg.DefaultTimeoutMinutes, "t", cfg.DefaultTimeoutMinutes, "inactivity timeout (in minutes)")
	poll := fs.Int("p", int(cfg.SessionPollInterval.Seconds()), "inactivity poll interval (in seconds)")
	fs.BoolVar(&cfg.RequireReauthOnRestart, "r", cfg.RequireReauthOnRestart, "require re-authentication on start")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format")

	if err := fs.Parse(filtered); err != nil {
		return err
	}

	cfg.SessionPollInterval = time.Duration(*poll) * time.Second
	return nil
}

func boolArgs(args []string, name string) []string {
	var out []string
	for _, a := range args {
		if a == name || strings.HasPrefix(a, name+"=") {
			out = append(out, a)
		}
	}
	return out
}
