package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/authn"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/authn/softauth"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/config"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/securestore"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/services"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/session"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/settings"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/filex"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
	"github.com/fatih/color"
)

type App struct {
	config      *config.Config
	log         logging.Logger
	store       *securestore.Store
	coordinator services.MigrationCoordinator
	settings    *settings.Store
	guard       *session.Guard
	reader      *bufio.Reader
	out         io.Writer

	// mnemonic is the phrase decrypted in this session; wiped on lock.
	mu       sync.Mutex
	mnemonic []byte
}

// NewApp opens the store under c.DBPath and wires the services. in and out
// are the terminal streams.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if _, err := filex.EnsureParentDir(c.DBPath); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store := securestore.New(c.DBPath, log)
	if err := store.Init(ctx); err != nil {
		log.Error(ctx, "error initializing database", "err", err)
		return nil, err
	}

	secret, err := softauth.LoadOrCreateSecret(c.DeviceSecretPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	defer common.WipeByteArray(secret)

	reader := bufio.NewReader(in)
	platform, err := softauth.New(secret, terminalVerifier(reader, out))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	gateway := authn.NewGateway(platform, authn.Options{RPID: c.RPID, RPName: c.UserName, Origin: c.Origin}, log)
	coordinator := services.NewMigrationCoordinator(gateway, store, store.Metadata(), log, c.UserName)
	prefs := settings.New(store.Metadata(), settings.Defaults{
		TimeoutMinutes:         c.DefaultTimeoutMinutes,
		RequireReauthOnRestart: c.RequireReauthOnRestart,
	})
	guard := session.NewGuard(coordinator, prefs, store.Metadata(), log,
		session.WithPollInterval(c.SessionPollInterval))

	a := &App{
		config:      c,
		log:         log,
		store:       store,
		coordinator: coordinator,
		settings:    prefs,
		guard:       guard,
		reader:      reader,
		out:         out,
	}
	guard.OnLock(a.onLock)
	return a, nil
}

// Run restores the session if allowed and blocks in the REPL.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if _, err := a.guard.Restore(ctx); err != nil {
		a.log.Warn(ctx, "session restore failed", "err", err)
	}

	fmt.Fprintln(a.out, "Zet wallet (type 'help' for commands)")
	_ = a.Status(ctx)

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

// Close stops the session and releases the store.
func (a *App) Close() error {
	a.guard.Close()
	a.forget()
	return a.store.Close()
}

func (a *App) Touch() {
	a.guard.Touch()
}

func (a *App) onLock(reason session.LockReason) {
	a.forget()
	if reason == session.ReasonTimeout {
		fmt.Fprintln(a.out, "\nLocked after inactivity.")
	}
}

func (a *App) forget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	common.WipeByteArray(a.mnemonic)
	a.mnemonic = nil
}

// remember keeps the phrase only while the session is unlocked. Lock
// listeners run after the state change, so a lock racing with this call
// either finds the phrase and wipes it or is seen here first.
func (a *App) remember(mnemonic string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	common.WipeByteArray(a.mnemonic)
	a.mnemonic = nil
	if a.guard.State().Status != session.Unlocked {
		return false
	}
	a.mnemonic = []byte(mnemonic)
	return true
}

func (a *App) status() string {
	if a.guard.State().Status == session.Unlocked {
		return color.GreenString("(unlocked)")
	}
	return color.RedString("(locked)")
}
