// Package models defines the records and results of the wallet secret core.
package models

import "time"

// Credential is a registered platform-authenticator identity. The first
// stored credential is canonical.
type Credential struct {
	// ID is the authenticator credential ID, base64url without padding.
	ID string
	// PublicKey is the COSE_Key encoded credential public key.
	PublicKey []byte
	// Counter is the signature counter reported at registration.
	Counter uint32
	// DeviceType is "singleDevice" or "multiDevice".
	DeviceType string
	// BackedUp reports whether the authenticator syncs the credential.
	BackedUp bool
	// Transports lists the authenticator transports, e.g. "internal".
	Transports []string
	CreatedAt  time.Time
}
