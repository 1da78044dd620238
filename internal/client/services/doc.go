// Package services contains the application services of the wallet client.
//
// MigrationCoordinator composes the authenticator gateway, the cipher vault
// and the secure store into the onboarding and unlock flows the session and
// CLI layers call. Its public operations report failures as tagged
// models.Result values instead of returning errors.
package services
