// Package settings persists user preferences for the session layer in the
// metadata collection. Values are read on every call so a change takes
// effect at the next unlock.
package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/metadata"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
)

// Defaults apply when nothing has been stored yet.
type Defaults struct {
	TimeoutMinutes         int
	RequireReauthOnRestart bool
}

type Store struct {
	md       metadata.Repository
	defaults Defaults
}

func New(md metadata.Repository, d Defaults) *Store {
	if d.TimeoutMinutes < 1 {
		d.TimeoutMinutes = 5
	}
	return &Store{md: md, defaults: d}
}

// TimeoutMinutes returns the inactivity timeout. A malformed stored value
// falls back to the default.
func (s *Store) TimeoutMinutes(ctx context.Context) (int, error) {
	v, err := s.md.Get(ctx, metadata.KeyTimeoutMinutes)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return s.defaults.TimeoutMinutes, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil || n < 1 {
		return s.defaults.TimeoutMinutes, nil
	}
	return n, nil
}

func (s *Store) SetTimeoutMinutes(ctx context.Context, minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("%w: timeout must be at least one minute", common.ErrInvalidInput)
	}
	return s.md.Set(ctx, metadata.KeyTimeoutMinutes, []byte(strconv.Itoa(minutes)))
}

// RequireReauthOnRestart reports whether auto-unlock on start is disabled.
func (s *Store) RequireReauthOnRestart(ctx context.Context) (bool, error) {
	v, err := s.md.Get(ctx, metadata.KeyRequireReauth)
	if err != nil {
		return false, err
	}
	if v == nil {
		return s.defaults.RequireReauthOnRestart, nil
	}
	b, err := strconv.ParseBool(string(v))
	if err != nil {
		return s.defaults.RequireReauthOnRestart, nil
	}
	return b, nil
}

func (s *Store) SetRequireReauthOnRestart(ctx context.Context, on bool) error {
	return s.md.Set(ctx, metadata.KeyRequireReauth, []byte(strconv.FormatBool(on)))
}
