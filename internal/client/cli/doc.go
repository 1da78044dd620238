// Package cli provides the interactive wallet command-line client.
//
// It wires configuration, the secure store, the software platform
// authenticator, the migration coordinator and the session guard, then runs
// a REPL. On start the session is restored when the last unlock is recent
// enough; every entered command counts as user activity for the inactivity
// timer.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits or
// ctx is cancelled. See App and runREPL for details.
package cli
