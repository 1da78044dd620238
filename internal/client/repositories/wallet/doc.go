// Package wallet persists the single SecuredWallet record.
//
// The record lives at models.WalletRecordID. Writes are guarded by an
// optimistic version: Insert fails when a record already exists and Update
// only succeeds when the stored updated_at still equals the value the caller
// read. Two windows racing on the same database therefore cannot silently
// overwrite each other; the loser gets common.ErrVersionConflict.
package wallet
