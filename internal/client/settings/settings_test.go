package settings

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/metadata"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newMetadata(t *testing.T) metadata.Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	require.NoError(t, err)
	return metadata.NewSQLiteRepository(db)
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	s := New(newMetadata(t), Defaults{TimeoutMinutes: 7, RequireReauthOnRestart: true})

	m, err := s.TimeoutMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, m)

	r, err := s.RequireReauthOnRestart(ctx)
	require.NoError(t, err)
	assert.True(t, r)

	m, err = New(newMetadata(t), Defaults{}).TimeoutMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, m)
}

func TestSetAndRead(t *testing.T) {
	ctx := context.Background()
	s := New(newMetadata(t), Defaults{TimeoutMinutes: 5})

	require.NoError(t, s.SetTimeoutMinutes(ctx, 1))
	require.NoError(t, s.SetRequireReauthOnRestart(ctx, true))

	m, err := s.TimeoutMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m)
	r, err := s.RequireReauthOnRestart(ctx)
	require.NoError(t, err)
	assert.True(t, r)

	require.ErrorIs(t, s.SetTimeoutMinutes(ctx, 0), common.ErrInvalidInput)
}

func TestMalformedValuesFallBack(t *testing.T) {
	ctx := context.Background()
	md := newMetadata(t)
	s := New(md, Defaults{TimeoutMinutes: 3})

	require.NoError(t, md.Set(ctx, metadata.KeyTimeoutMinutes, []byte("soon")))
	require.NoError(t, md.Set(ctx, metadata.KeyRequireReauth, []byte("maybe")))

	m, err := s.TimeoutMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, m)
	r, err := s.RequireReauthOnRestart(ctx)
	require.NoError(t, err)
	assert.False(t, r)
}

type brokenMetadata struct{ metadata.Repository }

func (brokenMetadata) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk gone")
}

func TestStorageErrorsPropagate(t *testing.T) {
	s := New(brokenMetadata{}, Defaults{})
	_, err := s.TimeoutMinutes(context.Background())
	require.Error(t, err)
	_, err = s.RequireReauthOnRestart(context.Background())
	require.Error(t, err)
}
