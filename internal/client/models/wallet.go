package models

import "time"

// WalletRecordID is the fixed key of the single SecuredWallet record.
const WalletRecordID = "wallet-data"

// SecuredWallet holds the encrypted recovery phrase.
//
// EncryptedMnemonic is empty only between credential registration and wallet
// creation. UpdatedAt doubles as the optimistic-concurrency version: writes
// carry the value they read and fail on mismatch.
type SecuredWallet struct {
	ID                string
	CredentialID      string
	WrappedMasterKey  []byte
	MnemonicIV        []byte
	EncryptedMnemonic []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasSecret reports whether the record carries an encrypted phrase.
func (w *SecuredWallet) HasSecret() bool {
	return w != nil && len(w.EncryptedMnemonic) > 0
}
