package session

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/metadata"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeUnlocker struct {
	status models.MigrationStatus
	result models.UnlockResult
	calls  int
}

func (f *fakeUnlocker) GetMigrationStatus(context.Context) (models.MigrationStatus, error) {
	return f.status, nil
}

func (f *fakeUnlocker) UnlockWalletWithBiometrics(context.Context) models.UnlockResult {
	f.calls++
	return f.result
}

type fakeSettings struct {
	minutes int
	reauth  bool
}

func (f *fakeSettings) TimeoutMinutes(context.Context) (int, error) { return f.minutes, nil }
func (f *fakeSettings) RequireReauthOnRestart(context.Context) (bool, error) { return f.reauth, nil }

type memMetadata struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMem() *memMetadata { return &memMetadata{m: map[string][]byte{}} }

func (r *memMetadata) Get(_ context.Context, k string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[k], nil
}

func (r *memMetadata) Set(_ context.Context, k string, v []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[k] = v
	return nil
}

func (r *memMetadata) Delete(_ context.Context, k string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, k)
	return nil
}

var _ metadata.Repository = (*memMetadata)(nil)

type harness struct {
	clock    *fakeClock
	unlocker *fakeUnlocker
	settings *fakeSettings
	markers  *memMetadata
	guard    *Guard
}

func newHarness(t *testing.T, poll time.Duration) *harness {
	t.Helper()
	h := &harness{
		clock: newClock(),
		unlocker: &fakeUnlocker{
			status: models.MigrationStatus{
				HasEncrypted: true, HasSecret: true, HasCredential: true, CredentialBound: true, BiometricSupported: true,
			},
			result: models.UnlockResult{Success: true, Mnemonic: "test junk"},
		},
		settings: &fakeSettings{minutes: 1},
		markers:  newMem(),
	}
	h.guard = NewGuard(h.unlocker, h.settings, h.markers, logging.Nop(),
		WithClock(h.clock.Now), WithPollInterval(poll))
	t.Cleanup(h.guard.Close)
	return h
}

func (h *harness) marker(t *testing.T) []byte {
	t.Helper()
	v, err := h.markers.Get(context.Background(), metadata.KeyLastUnlock)
	require.NoError(t, err)
	return v
}

// ---- tests ----

func TestUnlockApp_StartsSessionAndWritesMarker(t *testing.T) {
	h := newHarness(t, time.Hour)

	res := h.guard.UnlockApp(context.Background(), 0)
	require.True(t, res.Success)
	assert.Equal(t, "test junk", res.Mnemonic)

	st := h.guard.State()
	assert.Equal(t, Unlocked, st.Status)
	assert.Equal(t, 1, st.TimeoutMinutes)
	assert.Equal(t, h.clock.Now().Format(time.RFC3339Nano), string(h.marker(t)))
}

func TestUnlockApp_ExplicitTimeoutWins(t *testing.T) {
	h := newHarness(t, time.Hour)
	require.True(t, h.guard.UnlockApp(context.Background(), 15).Success)
	assert.Equal(t, 15, h.guard.State().TimeoutMinutes)
}

func TestUnlockApp_ReReadsSettingEachTime(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	require.True(t, h.guard.UnlockApp(ctx, 0).Success)
	assert.Equal(t, 1, h.guard.State().TimeoutMinutes)

	h.settings.minutes = 9
	h.guard.LockApp(ctx)
	require.True(t, h.guard.UnlockApp(ctx, 0).Success)
	assert.Equal(t, 9, h.guard.State().TimeoutMinutes)
}

func TestUnlockApp_FailureStaysLocked(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.unlocker.result = models.UnlockResult{Err: common.ErrUserCancelled}

	res := h.guard.UnlockApp(context.Background(), 0)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, common.ErrUserCancelled)
	assert.Equal(t, Locked, h.guard.State().Status)
	assert.Nil(t, h.marker(t))
	assert.Nil(t, h.guard.runningChecker())
}

func TestActivityEvery55sKeepsSessionOpen(t *testing.T) {
	h := newHarness(t, time.Hour)
	require.True(t, h.guard.UnlockApp(context.Background(), 1).Success)

	for i := 0; i < 5; i++ {
		h.clock.Advance(55 * time.Second)
		h.guard.Touch()
		assert.False(t, h.guard.checkInactivity(), "interval %d", i)
		h.clock.Advance(4 * time.Second)
		assert.False(t, h.guard.checkInactivity(), "interval %d", i)
	}
	assert.Equal(t, Unlocked, h.guard.State().Status)
}

func TestIdleSixtySecondsLocks(t *testing.T) {
	h := newHarness(t, time.Hour)
	var reasons []LockReason
	h.guard.OnLock(func(r LockReason) { reasons = append(reasons, r) })

	require.True(t, h.guard.UnlockApp(context.Background(), 1).Success)

	h.clock.Advance(59 * time.Second)
	assert.False(t, h.guard.checkInactivity())

	h.clock.Advance(2 * time.Second)
	assert.True(t, h.guard.checkInactivity())
	assert.Equal(t, Locked, h.guard.State().Status)
	assert.Equal(t, []LockReason{ReasonTimeout}, reasons)
	assert.Nil(t, h.marker(t))

	// further ticks are no-ops
	assert.True(t, h.guard.checkInactivity())
	assert.Len(t, reasons, 1)
}

func TestBackgroundCheckerLocksAndTearsDown(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	locked := make(chan LockReason, 1)
	h.guard.OnLock(func(r LockReason) { locked <- r })

	require.True(t, h.guard.UnlockApp(context.Background(), 1).Success)
	h.clock.Advance(2 * time.Minute)

	select {
	case r := <-locked:
		assert.Equal(t, ReasonTimeout, r)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not lock")
	}

	done := h.guard.runningChecker()
	require.NotNil(t, done)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker goroutine still running after lock")
	}
}

func TestSingleCheckerAcrossRepeatedUnlocks(t *testing.T) {
	h := newHarness(t, time.Millisecond)
	ctx := context.Background()

	var prev chan struct{}
	for i := 0; i < 20; i++ {
		require.True(t, h.guard.UnlockApp(ctx, 1).Success)
		h.guard.Touch()

		cur := h.guard.runningChecker()
		require.NotNil(t, cur)
		if prev != nil {
			require.NotEqual(t, prev, cur)
			assert.True(t, isClosed(prev), "checker %d outlived its session", i-1)
		}
		assert.False(t, isClosed(cur), "checker %d", i)
		prev = cur
	}

	h.guard.LockApp(ctx)
	assert.True(t, isClosed(prev))
	assert.Nil(t, h.guard.runningChecker())
}

// runningChecker returns the done channel of the current checker goroutine.
func (g *Guard) runningChecker() chan struct{} {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()
	return g.checkerDone
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLockApp(t *testing.T) {
	h := newHarness(t, time.Hour)
	var reasons []LockReason
	h.guard.OnLock(func(r LockReason) { reasons = append(reasons, r) })
	ctx := context.Background()

	h.guard.LockApp(ctx)
	assert.Empty(t, reasons)

	require.True(t, h.guard.UnlockApp(ctx, 0).Success)
	h.guard.LockApp(ctx)
	assert.Equal(t, Locked, h.guard.State().Status)
	assert.Equal(t, []LockReason{ReasonExplicit}, reasons)
	assert.Nil(t, h.marker(t))
}

func TestCloseKeepsMarker(t *testing.T) {
	h := newHarness(t, time.Hour)
	require.True(t, h.guard.UnlockApp(context.Background(), 0).Success)

	h.guard.Close()
	assert.Equal(t, Locked, h.guard.State().Status)
	assert.NotNil(t, h.marker(t))
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		prep   func(h *harness)
		want   Status
		marker bool
	}{
		{
			name:   "fresh marker restores",
			prep:   func(h *harness) { h.clock.Advance(30 * time.Second) },
			want:   Unlocked,
			marker: true,
		},
		{
			name:   "expired marker locks and is dropped",
			prep:   func(h *harness) { h.clock.Advance(61 * time.Second) },
			want:   Locked,
			marker: false,
		},
		{
			name:   "marker from the future locks",
			prep:   func(h *harness) { h.clock.Advance(-time.Minute) },
			want:   Locked,
			marker: false,
		},
		{
			name:   "re-auth required",
			prep:   func(h *harness) { h.settings.reauth = true },
			want:   Locked,
			marker: true,
		},
		{
			name: "empty-payload wallet",
			prep: func(h *harness) {
				h.unlocker.status = models.MigrationStatus{HasEncrypted: true, BiometricSupported: true}
			},
			want:   Locked,
			marker: true,
		},
		{
			name: "credentials forgotten",
			prep: func(h *harness) {
				h.unlocker.status.HasCredential = false
				h.unlocker.status.CredentialBound = false
			},
			want:   Locked,
			marker: true,
		},
		{
			name: "no marker",
			prep: func(h *harness) {
				_ = h.markers.Delete(ctx, metadata.KeyLastUnlock)
			},
			want:   Locked,
			marker: false,
		},
		{
			name: "garbage marker",
			prep: func(h *harness) {
				_ = h.markers.Set(ctx, metadata.KeyLastUnlock, []byte("yesterday"))
			},
			want:   Locked,
			marker: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, time.Hour)
			require.NoError(t, h.markers.Set(ctx, metadata.KeyLastUnlock, []byte(h.clock.Now().Format(time.RFC3339Nano))))
			tt.prep(h)

			got, err := h.guard.Restore(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, h.guard.State().Status)
			assert.Equal(t, tt.marker, h.marker(t) != nil)
			assert.Zero(t, h.unlocker.calls)
		})
	}
}

// stuckMarkers refuses deletes.
type stuckMarkers struct {
	*memMetadata
}

func (stuckMarkers) Delete(context.Context, string) error {
	return common.ErrStorage
}

func TestRestore_ExpiredMarkerDeleteFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	log, err := logging.New(logging.FormatText, "warn", &buf)
	require.NoError(t, err)

	h := newHarness(t, time.Hour)
	markers := stuckMarkers{memMetadata: h.markers}
	g := NewGuard(h.unlocker, h.settings, markers, log, WithClock(h.clock.Now), WithPollInterval(time.Hour))
	t.Cleanup(g.Close)

	require.NoError(t, markers.Set(ctx, metadata.KeyLastUnlock, []byte(h.clock.Now().Format(time.RFC3339Nano))))
	h.clock.Advance(2 * time.Minute)

	got, err := g.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, Locked, got)
	assert.Contains(t, buf.String(), "last unlock marker not cleared")
	assert.NotNil(t, h.marker(t))
}
