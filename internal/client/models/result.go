package models

// Result is the tagged outcome of a coordinator operation.
type Result struct {
	Success bool
	Err     error
}

// UnlockResult carries the decrypted phrase on success. Mnemonic is
// transient and must never be persisted.
type UnlockResult struct {
	Success  bool
	Mnemonic string
	Err      error
}

func Ok() Result { return Result{Success: true} }

func Fail(err error) Result { return Result{Err: err} }
