// Package authn is the identity gate in front of the wallet secret.
//
// A Gateway drives a Platform (the device's biometric authenticator) through
// WebAuthn-shaped registration and assertion ceremonies and verifies what comes
// back: the ceremony type, challenge, origin, relying-party hash, user
// presence flags and the signature over the authenticator data. A successful
// Authenticate is a presence proof only; it does not touch key material.
package authn
