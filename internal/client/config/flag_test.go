package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Config
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{"-d", "/tmp/w.db", "-t", "2", "-p", "1", "-r", "-l", "json"},
			want: Config{DBPath: "/tmp/w.db", DefaultTimeoutMinutes: 2, SessionPollInterval: time.Second, RequireReauthOnRestart: true, LogFormat: "json"},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-x", "1", "-d=/tmp/w.db", "-config", "some.yaml"},
			want: Config{DBPath: "/tmp/w.db"},
		},
		{
			name:    "bad interval",
			args:    []string{"-p", "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, *cfg))
		})
	}
}
