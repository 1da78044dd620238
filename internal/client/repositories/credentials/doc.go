// Package credentials persists registered authenticator credentials.
//
// Rows keep their insertion order through an autoincrement sequence column;
// GetAll returns them in that order so index 0 is the canonical credential.
// Each statement is atomic on its own; callers needing multi-row atomicity
// pass a *sql.Tx through dbx.DBTX.
package credentials
