package securestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/migrations"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/credentials"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/metadata"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/repositories/wallet"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/dbx"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=FULL",
}

// Store is the SecureStore. Construct with New and call Init before use.
type Store struct {
	dsn string
	log logging.Logger
	now func() time.Time

	mu          sync.Mutex
	db          *sql.DB
	credentials credentials.Repository
	wallet      wallet.Repository
	metadata    metadata.Repository
}

// New returns an unopened Store for the given SQLite DSN
// (a file path, or ":memory:" for tests).
func New(dsn string, log logging.Logger) *Store {
	return &Store{dsn: dsn, log: log, now: time.Now}
}

// Init opens the database and applies pending migrations. Calling it again
// on an initialized Store is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", common.ErrStorage, s.dsn, err)
	}
	// SQLite serializes writers anyway; one connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return fmt.Errorf("%w: %s: %v", common.ErrStorage, p, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: migrations: %v", common.ErrStorage, err)
	}

	s.db = db
	s.credentials = credentials.NewSQLiteRepository(db)
	s.wallet = wallet.NewSQLiteRepository(db)
	s.metadata = metadata.NewSQLiteRepository(db)

	s.log.Debug(ctx, "secure store opened", "dsn", s.dsn)
	return nil
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close releases the database. The Store may be re-initialized afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Metadata exposes the non-secret key/value collection. The returned view
// resolves the database on every call, so it may be taken before Init.
func (s *Store) Metadata() metadata.Repository {
	return metadataView{s: s}
}

func (s *Store) repos() (credentials.Repository, wallet.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, nil, errNotInitialized
	}
	return s.credentials, s.wallet, nil
}

var errNotInitialized = fmt.Errorf("%w: store not initialized", common.ErrStorage)

// StoreCredential appends a credential.
func (s *Store) StoreCredential(ctx context.Context, c *models.Credential) error {
	creds, _, err := s.repos()
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	return creds.Create(ctx, c)
}

// GetAllCredentials returns credentials in insertion order; index 0 is canonical.
func (s *Store) GetAllCredentials(ctx context.Context) ([]models.Credential, error) {
	creds, _, err := s.repos()
	if err != nil {
		return nil, err
	}
	return creds.GetAll(ctx)
}

// GetCredential returns common.ErrNotFound for an unknown id.
func (s *Store) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	creds, _, err := s.repos()
	if err != nil {
		return nil, err
	}
	return creds.GetByID(ctx, id)
}

// StoreWallet upserts the wallet record under optimistic concurrency.
//
// A zero w.UpdatedAt means "I saw no record": the write is an insert and
// fails with ErrVersionConflict if one appeared meanwhile. Otherwise
// w.UpdatedAt must equal the stored version. On success w.ID, w.CreatedAt and
// w.UpdatedAt reflect what was written. The referenced credential must exist.
func (s *Store) StoreWallet(ctx context.Context, w *models.SecuredWallet) error {
	creds, wallets, err := s.repos()
	if err != nil {
		return err
	}
	if _, err := creds.GetByID(ctx, w.CredentialID); err != nil {
		return fmt.Errorf("wallet references credential %q: %w", w.CredentialID, err)
	}

	next := *w
	next.ID = models.WalletRecordID
	now := s.now().UTC()

	if w.UpdatedAt.IsZero() {
		next.CreatedAt = now
		next.UpdatedAt = now
		if err := wallets.Insert(ctx, &next); err != nil {
			return err
		}
	} else {
		expected := w.UpdatedAt.UnixNano()
		if !now.After(w.UpdatedAt) {
			// keep versions strictly increasing under coarse or skewed clocks
			now = w.UpdatedAt.Add(time.Nanosecond)
		}
		next.UpdatedAt = now
		if err := wallets.Update(ctx, &next, expected); err != nil {
			return err
		}
	}

	*w = next
	return nil
}

// GetWallet returns common.ErrNotFound when no record exists.
func (s *Store) GetWallet(ctx context.Context) (*models.SecuredWallet, error) {
	_, wallets, err := s.repos()
	if err != nil {
		return nil, err
	}
	return wallets.Get(ctx, models.WalletRecordID)
}

// WalletRecordExists reports whether a record exists, empty or not.
func (s *Store) WalletRecordExists(ctx context.Context) (bool, error) {
	_, wallets, err := s.repos()
	if err != nil {
		return false, err
	}
	return wallets.Exists(ctx, models.WalletRecordID)
}

// WalletHasSecret reports whether the record exists with a non-empty payload.
func (s *Store) WalletHasSecret(ctx context.Context) (bool, error) {
	w, err := s.GetWallet(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return w.HasSecret(), nil
}

// ClearCredentials removes every credential. The wallet record is untouched.
func (s *Store) ClearCredentials(ctx context.Context) error {
	creds, _, err := s.repos()
	if err != nil {
		return err
	}
	return creds.Clear(ctx)
}

// ClearAllData irreversibly removes credentials and the wallet record in a
// single transaction.
func (s *Store) ClearAllData(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return errNotInitialized
	}

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := credentials.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return wallet.NewSQLiteRepository(tx).Delete(ctx, models.WalletRecordID)
	})
	if err != nil {
		if errors.Is(err, common.ErrStorage) {
			return err
		}
		return fmt.Errorf("%w: clear all data: %v", common.ErrStorage, err)
	}
	s.log.Warn(ctx, "secure store wiped")
	return nil
}

type metadataView struct {
	s *Store
}

func (v metadataView) repo() (metadata.Repository, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.db == nil {
		return nil, errNotInitialized
	}
	return v.s.metadata, nil
}

func (v metadataView) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := v.repo()
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, key)
}

func (v metadataView) Set(ctx context.Context, key string, value []byte) error {
	r, err := v.repo()
	if err != nil {
		return err
	}
	return r.Set(ctx, key, value)
}

func (v metadataView) Delete(ctx context.Context, key string) error {
	r, err := v.repo()
	if err != nil {
		return err
	}
	return r.Delete(ctx, key)
}
