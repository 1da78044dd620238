package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/session"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
)

var routeHints = map[models.Route]string{
	models.RouteUnsupported:  "This device has no usable authenticator.",
	models.RouteSetup:        "No authenticator registered: run 'setup', then 'import'.",
	models.RouteMigrate:      "A plaintext recovery phrase was found: run 'migrate' to protect it.",
	models.RouteCreateWallet: "Authenticator registered: run 'import' to add your recovery phrase.",
	models.RouteUnlock:       "Wallet protected: run 'unlock'.",
}

// Status prints the onboarding route and the session state.
func (a *App) Status(ctx context.Context) error {
	st, err := a.coordinator.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	minutes, err := a.settings.TimeoutMinutes(ctx)
	if err != nil {
		return err
	}
	reauth, err := a.settings.RequireReauthOnRestart(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "legacy phrase: %t, wallet record: %t, secret: %t, credential: %t, authenticator: %t\n",
		st.HasUnencrypted, st.HasEncrypted, st.HasSecret, st.CredentialBound, st.BiometricSupported)
	fmt.Fprintf(a.out, "session: %s, timeout: %d min, re-auth on start: %t\n",
		a.guard.State().Status, minutes, reauth)
	fmt.Fprintln(a.out, routeHints[st.Route()])
	return nil
}

func (a *App) Setup(ctx context.Context) error {
	return a.report(a.coordinator.SetupBiometrics(ctx), "Authenticator registered.")
}

func (a *App) Migrate(ctx context.Context) error {
	return a.report(a.coordinator.MigrateLocalStorageToBiometric(ctx), "Recovery phrase encrypted, plaintext copy removed.")
}

// Import reads a recovery phrase without echo and encrypts it.
func (a *App) Import(ctx context.Context) error {
	st, err := a.coordinator.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	if st.HasSecret && st.CredentialBound {
		ok, err := Confirm(a.reader, "A wallet is already stored. Replace it?", a.out)
		if err != nil || !ok {
			return err
		}
	}

	phrase, err := GetSecret(a.reader, "Recovery phrase", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(phrase)

	return a.report(a.coordinator.EncryptNewMnemonic(ctx, string(phrase)), "Wallet encrypted.")
}

func (a *App) Unlock(ctx context.Context) error {
	res := a.guard.UnlockApp(ctx, 0)
	if !res.Success {
		return a.report(models.Fail(res.Err), "")
	}
	if !a.remember(res.Mnemonic) {
		fmt.Fprintln(a.out, "Wallet is locked: run 'unlock'.")
		return nil
	}
	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	a.guard.LockApp(ctx)
	fmt.Fprintln(a.out, "Locked.")
	return nil
}

// Show prints the phrase. A restored session has no phrase in memory yet, so
// the authenticator is asked once.
func (a *App) Show(ctx context.Context) error {
	if a.guard.State().Status != session.Unlocked {
		fmt.Fprintln(a.out, "Wallet is locked: run 'unlock'.")
		return nil
	}

	a.mu.Lock()
	have := a.mnemonic != nil
	a.mu.Unlock()
	if !have {
		res := a.coordinator.UnlockWalletWithBiometrics(ctx)
		if !res.Success {
			return a.report(models.Fail(res.Err), "")
		}
		a.remember(res.Mnemonic)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mnemonic == nil {
		fmt.Fprintln(a.out, "Wallet is locked: run 'unlock'.")
		return nil
	}
	fmt.Fprintln(a.out, string(a.mnemonic))
	return nil
}

func (a *App) PubKey(ctx context.Context) error {
	key, err := a.coordinator.GetBiometricPublicKey(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, base64.RawURLEncoding.EncodeToString(key))
	return nil
}

// Timeout shows or sets the inactivity timeout; a new value applies from the
// next unlock.
func (a *App) Timeout(ctx context.Context, args []string) error {
	if len(args) == 0 {
		m, err := a.settings.TimeoutMinutes(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Inactivity timeout: %d min\n", m)
		return nil
	}
	m, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("usage: timeout <minutes>")
	}
	if err := a.settings.SetTimeoutMinutes(ctx, m); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Inactivity timeout set to %d min (applies at next unlock).\n", m)
	return nil
}

func (a *App) Reauth(ctx context.Context, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: reauth on|off")
	}
	on := args[0] == "on"
	if err := a.settings.SetRequireReauthOnRestart(ctx, on); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Re-authentication on start: %t\n", on)
	return nil
}

// Forget removes the authenticator credentials. The encrypted wallet stays
// but cannot be unlocked until 'setup' and 'import' bind it to a new one.
func (a *App) Forget(ctx context.Context) error {
	ok, err := Confirm(a.reader, "Remove authenticator credentials? To unlock again you will need 'setup' and your recovery phrase for 'import'.", a.out)
	if err != nil || !ok {
		return err
	}
	a.guard.LockApp(ctx)
	return a.report(a.coordinator.ClearBiometricCredentials(ctx), "Credentials removed.")
}

// Reset erases everything after the user types RESET.
func (a *App) Reset(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, "This erases the encrypted wallet. Without your recovery phrase the funds are lost. Type RESET to continue", a.out)
	if err != nil {
		return err
	}
	if answer != "RESET" {
		fmt.Fprintln(a.out, "Aborted.")
		return nil
	}
	a.guard.LockApp(ctx)
	return a.report(a.coordinator.ClearAllData(ctx), "All wallet data erased.")
}

func (a *App) report(res models.Result, okMsg string) error {
	if res.Success {
		fmt.Fprintln(a.out, okMsg)
		return nil
	}
	fmt.Fprintln(a.out, describe(res.Err))
	return nil
}

// describe turns a coordinator error into a recovery hint.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrUserCancelled):
		return "Cancelled."
	case errors.Is(err, common.ErrCapability):
		return "This device cannot use the authenticator: " + err.Error()
	case errors.Is(err, common.ErrAlreadyEncrypted):
		return "The wallet is already protected."
	case errors.Is(err, common.ErrPlaintextMismatch):
		return "The plaintext phrase differs from the encrypted wallet; both were kept. Resolve manually."
	case errors.Is(err, common.ErrNotFound):
		return "Nothing found: " + err.Error() + ". Run 'status' for the next step."
	case errors.Is(err, common.ErrIntegrity):
		return "The stored wallet failed its integrity check and cannot be decrypted."
	case errors.Is(err, common.ErrVersionConflict):
		return "Another window changed the wallet at the same time; try again."
	case errors.Is(err, common.ErrInvalidInput):
		return "Invalid input: " + err.Error()
	case errors.Is(err, common.ErrAuthenticatorFailed):
		return "Authenticator check failed."
	default:
		return "Failed: " + err.Error()
	}
}
