package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/metadata"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
)

const defaultPollInterval = 10 * time.Second

// Unlocker is the slice of the migration coordinator the guard needs.
type Unlocker interface {
	GetMigrationStatus(ctx context.Context) (models.MigrationStatus, error)
	UnlockWalletWithBiometrics(ctx context.Context) models.UnlockResult
}

// Settings supplies user preferences; both are read fresh on every use.
type Settings interface {
	TimeoutMinutes(ctx context.Context) (int, error)
	RequireReauthOnRestart(ctx context.Context) (bool, error)
}

// LockReason tells OnLock listeners why the session ended.
type LockReason string

const (
	ReasonExplicit LockReason = "explicit"
	ReasonTimeout  LockReason = "timeout"
	ReasonClosed   LockReason = "closed"
)

type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithPollInterval sets how often the inactivity checker wakes up.
func WithPollInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.poll = d
		}
	}
}

// Guard is the session state machine. It is safe for concurrent use.
type Guard struct {
	unlocker Unlocker
	settings Settings
	markers  metadata.Repository
	log      logging.Logger
	now      func() time.Time
	poll     time.Duration

	mu        sync.Mutex
	state     State
	listeners []func(LockReason)

	// lifecycle serializes stop-then-start of the checker goroutine.
	lifecycle     sync.Mutex
	checkerCancel context.CancelFunc
	checkerDone   chan struct{}
}

// NewGuard returns a Locked guard. markers stores the last-unlock timestamp.
func NewGuard(u Unlocker, s Settings, markers metadata.Repository, log logging.Logger, opts ...Option) *Guard {
	g := &Guard{
		unlocker: u,
		settings: s,
		markers:  markers,
		log:      log,
		now:      time.Now,
		poll:     defaultPollInterval,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// State returns a snapshot.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnLock registers fn to run after every Unlocked -> Locked transition.
func (g *Guard) OnLock(fn func(LockReason)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// UnlockApp runs the biometric unlock and, on success, starts a session of
// timeoutMinutes. A non-positive timeoutMinutes means "use the setting".
func (g *Guard) UnlockApp(ctx context.Context, timeoutMinutes int) models.UnlockResult {
	res := g.unlocker.UnlockWalletWithBiometrics(ctx)
	if !res.Success {
		return res
	}

	minutes, err := g.resolveTimeout(ctx, timeoutMinutes)
	if err != nil {
		return models.UnlockResult{Err: err}
	}

	now := g.now().UTC()
	if err := g.markers.Set(ctx, metadata.KeyLastUnlock, []byte(now.Format(time.RFC3339Nano))); err != nil {
		// the session still works; only the next restart will ask again
		g.log.Warn(ctx, "last unlock marker not saved", "err", err)
	}

	g.begin(now, minutes)
	g.log.Info(ctx, "session unlocked", "timeout_minutes", minutes)
	return res
}

// Restore decides the state on process start. It unlocks without prompting
// only if an encrypted wallet with a secret and a registered credential
// exists, re-auth on restart is off and the last unlock is younger than the
// timeout.
func (g *Guard) Restore(ctx context.Context) (Status, error) {
	ok, minutes, err := g.canAutoUnlock(ctx)
	if err != nil || !ok {
		return Locked, err
	}
	g.begin(g.now().UTC(), minutes)
	g.log.Info(ctx, "session restored", "timeout_minutes", minutes)
	return Unlocked, nil
}

func (g *Guard) canAutoUnlock(ctx context.Context) (bool, int, error) {
	st, err := g.unlocker.GetMigrationStatus(ctx)
	if err != nil {
		return false, 0, err
	}
	if !st.HasEncrypted || !st.HasSecret || !st.CredentialBound {
		return false, 0, nil
	}

	reauth, err := g.settings.RequireReauthOnRestart(ctx)
	if err != nil {
		return false, 0, err
	}
	if reauth {
		return false, 0, nil
	}

	raw, err := g.markers.Get(ctx, metadata.KeyLastUnlock)
	if err != nil {
		return false, 0, err
	}
	if raw == nil {
		return false, 0, nil
	}
	last, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		g.log.Warn(ctx, "ignoring malformed last unlock marker")
		return false, 0, nil
	}

	minutes, err := g.resolveTimeout(ctx, 0)
	if err != nil {
		return false, 0, err
	}

	elapsed := g.now().Sub(last)
	if elapsed < 0 || elapsed >= time.Duration(minutes)*time.Minute {
		g.log.Debug(ctx, "last unlock marker expired", "elapsed", elapsed.String())
		if err := g.markers.Delete(ctx, metadata.KeyLastUnlock); err != nil {
			g.log.Warn(ctx, "last unlock marker not cleared", "err", err)
		}
		return false, 0, nil
	}
	return true, minutes, nil
}

func (g *Guard) resolveTimeout(ctx context.Context, minutes int) (int, error) {
	if minutes > 0 {
		return minutes, nil
	}
	m, err := g.settings.TimeoutMinutes(ctx)
	if err != nil {
		return 0, fmt.Errorf("read timeout setting: %w", err)
	}
	return m, nil
}

func (g *Guard) begin(at time.Time, minutes int) {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	g.stopChecker()

	g.mu.Lock()
	g.state = Transition(g.state, Event{Kind: EventUnlock, At: at, TimeoutMinutes: minutes})
	g.mu.Unlock()

	g.startChecker()
}

// LockApp ends the session and forgets the last-unlock marker.
func (g *Guard) LockApp(ctx context.Context) {
	g.lifecycle.Lock()
	g.stopChecker()
	g.lifecycle.Unlock()

	g.lock(ctx, ReasonExplicit)
}

// Touch records user activity.
func (g *Guard) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Transition(g.state, Event{Kind: EventActivity, At: g.now()})
}

// Close stops the checker and locks. The last-unlock marker is kept so the
// next start can restore the session.
func (g *Guard) Close() {
	g.lifecycle.Lock()
	g.stopChecker()
	g.lifecycle.Unlock()

	if wasUnlocked, listeners := g.toLocked(); wasUnlocked {
		notify(listeners, ReasonClosed)
	}
}

// checkInactivity applies a timeout tick. It reports whether the session is
// now locked.
func (g *Guard) checkInactivity() bool {
	g.mu.Lock()
	prev := g.state
	g.state = Transition(g.state, Event{Kind: EventTimeoutFired, At: g.now()})
	locked := g.state.Status == Locked
	fired := prev.Status == Unlocked && locked
	listeners := g.listeners
	g.mu.Unlock()

	if fired {
		ctx := context.Background()
		if err := g.markers.Delete(ctx, metadata.KeyLastUnlock); err != nil {
			g.log.Warn(ctx, "last unlock marker not cleared", "err", err)
		}
		g.log.Info(ctx, "session locked after inactivity", "timeout_minutes", prev.TimeoutMinutes)
		notify(listeners, ReasonTimeout)
	}
	return locked
}

func (g *Guard) lock(ctx context.Context, reason LockReason) {
	wasUnlocked, listeners := g.toLocked()

	if err := g.markers.Delete(ctx, metadata.KeyLastUnlock); err != nil {
		g.log.Warn(ctx, "last unlock marker not cleared", "err", err)
	}
	if wasUnlocked {
		g.log.Info(ctx, "session locked", "reason", string(reason))
		notify(listeners, reason)
	}
}

func (g *Guard) toLocked() (bool, []func(LockReason)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasUnlocked := g.state.Status == Unlocked
	g.state = Transition(g.state, Event{Kind: EventLock, At: g.now()})
	return wasUnlocked, g.listeners
}

// startChecker and stopChecker require g.lifecycle.
func (g *Guard) startChecker() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.checkerCancel = cancel
	g.checkerDone = done

	go g.runChecker(ctx, done)
}

func (g *Guard) stopChecker() {
	if g.checkerCancel != nil {
		g.checkerCancel()
		g.checkerCancel = nil
	}
	if g.checkerDone != nil {
		<-g.checkerDone
		g.checkerDone = nil
	}
}

func (g *Guard) runChecker(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if g.checkInactivity() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func notify(listeners []func(LockReason), reason LockReason) {
	for _, fn := range listeners {
		fn(reason)
	}
}
