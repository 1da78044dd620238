package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/authn"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/metadata"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/cryptox"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
	"github.com/google/uuid"
)

// Authenticator is the identity gate (authn.Gateway).
type Authenticator interface {
	IsSupported(ctx context.Context) bool
	RegisterCredential(ctx context.Context, userID, displayName string) (*models.Credential, error)
	Authenticate(ctx context.Context, cred *models.Credential) (*authn.Assertion, error)
}

// SecretStore persists credentials and the secured wallet (securestore.Store).
type SecretStore interface {
	StoreCredential(ctx context.Context, c *models.Credential) error
	GetAllCredentials(ctx context.Context) ([]models.Credential, error)
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	StoreWallet(ctx context.Context, w *models.SecuredWallet) error
	GetWallet(ctx context.Context) (*models.SecuredWallet, error)
	WalletRecordExists(ctx context.Context) (bool, error)
	WalletHasSecret(ctx context.Context) (bool, error)
	ClearCredentials(ctx context.Context) error
	ClearAllData(ctx context.Context) error
}

// MigrationCoordinator drives setup, legacy migration, wallet encryption and
// biometric unlock.
//
// Contract:
//   - GetMigrationStatus: derive the onboarding status.
//   - MigrateLocalStorageToBiometric: register (or reuse) a credential, then
//     encrypt and persist any legacy plaintext phrase before purging it.
//   - SetupBiometrics: the same flow on a device without legacy data. When
//     the wallet's credential was removed it registers a new one; the
//     wallet is rebound by the next EncryptNewMnemonic.
//   - EncryptNewMnemonic: encrypt a phrase into the wallet record.
//   - UnlockWalletWithBiometrics: gate on the authenticator, then decrypt.
//   - ClearBiometricCredentials: drop credentials, keep the wallet record.
//   - ClearAllData: wipe credentials, wallet and the last-unlock marker.
//   - GetBiometricPublicKey: COSE public key of the canonical credential.
type MigrationCoordinator interface {
	GetMigrationStatus(ctx context.Context) (models.MigrationStatus, error)
	MigrateLocalStorageToBiometric(ctx context.Context) models.Result
	SetupBiometrics(ctx context.Context) models.Result
	EncryptNewMnemonic(ctx context.Context, mnemonic string) models.Result
	UnlockWalletWithBiometrics(ctx context.Context) models.UnlockResult
	ClearBiometricCredentials(ctx context.Context) models.Result
	ClearAllData(ctx context.Context) models.Result
	GetBiometricPublicKey(ctx context.Context) ([]byte, error)
}

type migrationCoordinator struct {
	auth     Authenticator
	store    SecretStore
	legacy   metadata.Repository
	log      logging.Logger
	userName string

	// serializes mutating flows within this process; cross-process races
	// are caught by the wallet record's version check.
	mu sync.Mutex
}

// NewMigrationCoordinator wires the coordinator. legacy holds the plaintext
// fallback phrase and the last-unlock marker.
func NewMigrationCoordinator(auth Authenticator, store SecretStore, legacy metadata.Repository, log logging.Logger, userName string) MigrationCoordinator {
	if userName == "" {
		userName = "wallet"
	}
	return &migrationCoordinator{auth: auth, store: store, legacy: legacy, log: log, userName: userName}
}

func (c *migrationCoordinator) GetMigrationStatus(ctx context.Context) (models.MigrationStatus, error) {
	var st models.MigrationStatus

	plain, err := c.legacyMnemonic(ctx)
	if err != nil {
		return st, err
	}
	st.HasUnencrypted = plain != ""

	if st.HasEncrypted, err = c.store.WalletRecordExists(ctx); err != nil {
		return st, err
	}
	if st.HasSecret, err = c.store.WalletHasSecret(ctx); err != nil {
		return st, err
	}

	creds, err := c.store.GetAllCredentials(ctx)
	if err != nil {
		return st, err
	}
	st.HasCredential = len(creds) > 0
	if st.HasEncrypted {
		w, err := c.store.GetWallet(ctx)
		switch {
		case errors.Is(err, common.ErrNotFound):
			st.HasEncrypted, st.HasSecret = false, false
		case err != nil:
			return st, err
		default:
			st.CredentialBound = bound(creds, w.CredentialID)
		}
	}
	st.BiometricSupported = c.auth.IsSupported(ctx)
	return st, nil
}

func (c *migrationCoordinator) MigrateLocalStorageToBiometric(ctx context.Context) models.Result {
	return c.migrate(ctx, "migrate")
}

func (c *migrationCoordinator) SetupBiometrics(ctx context.Context) models.Result {
	return c.migrate(ctx, "setup")
}

func (c *migrationCoordinator) migrate(ctx context.Context, op string) models.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.log.With("op", op, "op_id", uuid.NewString())

	if !c.auth.IsSupported(ctx) {
		return models.Fail(fmt.Errorf("%w: biometric authenticator unavailable", common.ErrCapability))
	}

	plain, err := c.legacyMnemonic(ctx)
	if err != nil {
		return models.Fail(err)
	}

	hasSecret, err := c.store.WalletHasSecret(ctx)
	if err != nil {
		return models.Fail(err)
	}
	if hasSecret {
		if plain != "" {
			// an earlier run persisted the encrypted copy but did not purge
			log.Warn(ctx, "resuming interrupted migration")
			return result(c.verifyAndPurge(ctx, plain))
		}
		return c.reregister(ctx, log)
	}

	cred, err := c.canonicalOrRegister(ctx, log)
	if err != nil {
		return models.Fail(err)
	}

	w, err := c.store.GetWallet(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
		w = &models.SecuredWallet{}
	case err != nil:
		return models.Fail(err)
	}
	w.CredentialID = cred.ID

	if plain == "" {
		if err := c.store.StoreWallet(ctx, w); err != nil {
			return models.Fail(err)
		}
		log.Info(ctx, "biometric setup complete, wallet pending", "credential", authn.ShortID(cred.ID))
		return models.Ok()
	}

	if err := sealInto(w, plain); err != nil {
		return models.Fail(err)
	}
	if err := c.store.StoreWallet(ctx, w); err != nil {
		log.Error(ctx, "persist encrypted wallet failed, plaintext kept", "err", err)
		return models.Fail(err)
	}
	if err := c.verifyAndPurge(ctx, plain); err != nil {
		log.Error(ctx, "purge of plaintext failed, retry to finish", "err", err)
		return models.Fail(err)
	}
	log.Info(ctx, "legacy phrase migrated", "credential", authn.ShortID(cred.ID))
	return models.Ok()
}

// reregister handles a populated wallet. If its credential is still
// registered the wallet is already protected. Otherwise a credential is
// registered (or an unbound one reused) and the wallet waits for re-import.
func (c *migrationCoordinator) reregister(ctx context.Context, log logging.Logger) models.Result {
	w, err := c.store.GetWallet(ctx)
	if err != nil {
		return models.Fail(err)
	}
	creds, err := c.store.GetAllCredentials(ctx)
	if err != nil {
		return models.Fail(err)
	}
	if bound(creds, w.CredentialID) {
		return models.Fail(fmt.Errorf("%w: wallet already protected", common.ErrAlreadyEncrypted))
	}

	cred, err := c.canonicalOrRegister(ctx, log)
	if err != nil {
		return models.Fail(err)
	}
	log.Warn(ctx, "wallet credential missing, new credential awaits re-import",
		"credential", authn.ShortID(cred.ID))
	return models.Ok()
}

// verifyAndPurge re-reads the persisted wallet, checks it decrypts to plain
// and only then deletes the plaintext copy.
func (c *migrationCoordinator) verifyAndPurge(ctx context.Context, plain string) error {
	w, err := c.store.GetWallet(ctx)
	if err != nil {
		return err
	}
	got, err := open(w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(got)

	if subtle.ConstantTimeCompare(got, []byte(plain)) != 1 {
		return fmt.Errorf("%w: encrypted copy differs from plaintext", common.ErrPlaintextMismatch)
	}
	if err := c.legacy.Delete(ctx, metadata.KeyLegacyMnemonic); err != nil {
		return err
	}
	return nil
}

func (c *migrationCoordinator) canonicalOrRegister(ctx context.Context, log logging.Logger) (*models.Credential, error) {
	creds, err := c.store.GetAllCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if len(creds) > 0 {
		log.Debug(ctx, "reusing credential", "credential", authn.ShortID(creds[0].ID))
		return &creds[0], nil
	}

	userID, err := cryptox.GenerateRandomID()
	if err != nil {
		return nil, err
	}
	cred, err := c.auth.RegisterCredential(ctx, userID, c.userName)
	if err != nil {
		return nil, err
	}
	if err := c.store.StoreCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (c *migrationCoordinator) EncryptNewMnemonic(ctx context.Context, mnemonic string) models.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.log.With("op", "encrypt", "op_id", uuid.NewString())

	phrase := normalize(mnemonic)
	if phrase == "" {
		return models.Fail(fmt.Errorf("%w: empty mnemonic", common.ErrInvalidInput))
	}

	creds, err := c.store.GetAllCredentials(ctx)
	if err != nil {
		return models.Fail(err)
	}
	if len(creds) == 0 {
		return models.Fail(fmt.Errorf("%w: no biometric credential, run setup first", common.ErrNotFound))
	}

	w, err := c.store.GetWallet(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
		w = &models.SecuredWallet{CredentialID: creds[0].ID}
	case err != nil:
		return models.Fail(err)
	case w.HasSecret():
		log.Warn(ctx, "replacing existing wallet secret")
	}
	if !bound(creds, w.CredentialID) {
		if w.CredentialID != "" {
			log.Info(ctx, "rebinding wallet to current credential", "credential", authn.ShortID(creds[0].ID))
		}
		w.CredentialID = creds[0].ID
	}

	if err := sealInto(w, phrase); err != nil {
		return models.Fail(err)
	}
	if err := c.store.StoreWallet(ctx, w); err != nil {
		return models.Fail(err)
	}
	log.Info(ctx, "wallet secret encrypted", "credential", authn.ShortID(w.CredentialID))
	return models.Ok()
}

func (c *migrationCoordinator) UnlockWalletWithBiometrics(ctx context.Context) models.UnlockResult {
	fail := func(err error) models.UnlockResult { return models.UnlockResult{Err: err} }

	w, err := c.store.GetWallet(ctx)
	if err != nil {
		return fail(err)
	}
	if !w.HasSecret() {
		return fail(fmt.Errorf("%w: wallet has no secret yet", common.ErrNotFound))
	}

	cred, err := c.store.GetCredential(ctx, w.CredentialID)
	if err != nil {
		return fail(fmt.Errorf("credential for wallet: %w", err))
	}

	if _, err := c.auth.Authenticate(ctx, cred); err != nil {
		c.log.Warn(ctx, "biometric gate refused", "credential", authn.ShortID(cred.ID), "err", err)
		return fail(gateError(err))
	}

	plain, err := open(w)
	if err != nil {
		c.log.Error(ctx, "wallet decrypt failed", "err", err)
		return fail(err)
	}
	defer common.WipeByteArray(plain)

	return models.UnlockResult{Success: true, Mnemonic: string(plain)}
}

func (c *migrationCoordinator) ClearBiometricCredentials(ctx context.Context) models.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.ClearCredentials(ctx); err != nil {
		return models.Fail(err)
	}
	c.log.Warn(ctx, "biometric credentials cleared")
	return models.Ok()
}

func (c *migrationCoordinator) ClearAllData(ctx context.Context) models.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.ClearAllData(ctx); err != nil {
		return models.Fail(err)
	}
	if err := c.legacy.Delete(ctx, metadata.KeyLastUnlock); err != nil {
		return models.Fail(err)
	}
	return models.Ok()
}

func (c *migrationCoordinator) GetBiometricPublicKey(ctx context.Context) ([]byte, error) {
	creds, err := c.store.GetAllCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("%w: no biometric credential", common.ErrNotFound)
	}
	return append([]byte(nil), creds[0].PublicKey...), nil
}

func (c *migrationCoordinator) legacyMnemonic(ctx context.Context) (string, error) {
	v, err := c.legacy.Get(ctx, metadata.KeyLegacyMnemonic)
	if err != nil {
		return "", err
	}
	return normalize(string(v)), nil
}

// sealInto encrypts phrase under a fresh master key and stores the result in w.
func sealInto(w *models.SecuredWallet, phrase string) error {
	key, err := cryptox.GenerateMasterKey()
	if err != nil {
		return err
	}
	defer key.Wipe()

	iv, ct, err := cryptox.EncryptData(key, []byte(phrase))
	if err != nil {
		return err
	}
	w.WrappedMasterKey = cryptox.ExportKey(key)
	w.MnemonicIV = iv
	w.EncryptedMnemonic = ct
	return nil
}

func open(w *models.SecuredWallet) ([]byte, error) {
	key, err := cryptox.ImportKey(w.WrappedMasterKey)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()
	return cryptox.DecryptData(key, w.MnemonicIV, w.EncryptedMnemonic)
}

// bound reports whether id names one of creds.
func bound(creds []models.Credential, id string) bool {
	if id == "" {
		return false
	}
	for i := range creds {
		if creds[i].ID == id {
			return true
		}
	}
	return false
}

func normalize(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

func result(err error) models.Result {
	if err != nil {
		return models.Fail(err)
	}
	return models.Ok()
}

// gateError keeps cancellation and capability errors recognizable and files
// everything else under ErrAuthenticatorFailed.
func gateError(err error) error {
	if errors.Is(err, common.ErrUserCancelled) || errors.Is(err, common.ErrCapability) ||
		errors.Is(err, common.ErrAuthenticatorFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrAuthenticatorFailed, err)
}
