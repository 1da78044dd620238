// Package metadata stores non-secret key/value pairs outside the secure
// collections: the legacy plaintext fallback, the last-unlock marker and
// user settings.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	// KeyLegacyMnemonic holds the pre-biometric plaintext recovery phrase.
	KeyLegacyMnemonic = "mnemonic"
	// KeyLastUnlock holds the last successful unlock time, RFC 3339 UTC.
	KeyLastUnlock = "last_unlock_at"
	// KeyTimeoutMinutes holds the inactivity timeout setting.
	KeyTimeoutMinutes = "settings.timeout_minutes"
	// KeyRequireReauth holds the "re-authenticate on every start" setting.
	KeyRequireReauth = "settings.require_reauth"
)

// Repository is a flat key/value store. Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
