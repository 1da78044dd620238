package models

// Route is the onboarding path selected from a MigrationStatus.
type Route string

const (
	RouteUnsupported  Route = "unsupported"
	RouteSetup        Route = "setup"
	RouteMigrate      Route = "migrate"
	RouteCreateWallet Route = "create-wallet"
	RouteUnlock       Route = "unlock"
)

// MigrationStatus is derived on demand and never persisted.
type MigrationStatus struct {
	// HasUnencrypted: a legacy plaintext phrase is present.
	HasUnencrypted bool
	// HasEncrypted: a SecuredWallet record exists (possibly empty).
	HasEncrypted bool
	// HasSecret: the SecuredWallet record carries a non-empty payload.
	HasSecret bool
	// HasCredential: at least one authenticator credential is registered.
	HasCredential bool
	// CredentialBound: the wallet record names a registered credential.
	CredentialBound    bool
	BiometricSupported bool
}

// Route picks the onboarding branch. An encrypted record without payload
// routes to wallet creation, not unlock. A secret whose credential was
// removed routes to setup and then to wallet creation (re-import).
func (s MigrationStatus) Route() Route {
	switch {
	case s.HasEncrypted && s.HasSecret && s.CredentialBound:
		return RouteUnlock
	case !s.BiometricSupported:
		return RouteUnsupported
	case s.HasUnencrypted:
		return RouteMigrate
	case !s.HasCredential:
		return RouteSetup
	default:
		return RouteCreateWallet
	}
}
