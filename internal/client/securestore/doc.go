// Package securestore is the persistent local store behind the wallet core.
//
// It owns one SQLite database (pure-Go modernc.org/sqlite driver) migrated by
// embedded goose migrations, and exposes two logical collections:
//
//   - credentials: registered authenticator credentials in insertion order;
//   - wallet: the single SecuredWallet record at models.WalletRecordID.
//
// A third table, metadata, holds non-secret values and is handed out through
// Metadata(); it is deliberately not part of ClearAllData.
//
// # Concurrency
//
// Every record operation is atomic on its own. Wallet writes are additionally
// guarded by an optimistic updated_at version (see StoreWallet), which turns a
// lost update between two processes sharing the file into ErrVersionConflict.
package securestore
