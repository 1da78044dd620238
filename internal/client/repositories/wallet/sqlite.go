package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.SecuredWallet, error) {
	var (
		w                    models.SecuredWallet
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, credential_id, wrapped_master_key, mnemonic_iv, encrypted_mnemonic, created_at, updated_at
		FROM wallet WHERE id = ?`, id).
		Scan(&w.ID, &w.CredentialID, &w.WrappedMasterKey, &w.MnemonicIV, &w.EncryptedMnemonic, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet record %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get wallet: %v", common.ErrStorage, err)
	}
	w.CreatedAt = time.Unix(0, createdAt).UTC()
	w.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &w, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, w *models.SecuredWallet) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO wallet (id, credential_id, wrapped_master_key, mnemonic_iv, encrypted_mnemonic, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		w.ID, w.CredentialID, nonNil(w.WrappedMasterKey), nonNil(w.MnemonicIV), nonNil(w.EncryptedMnemonic),
		w.CreatedAt.UnixNano(), w.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: failed to insert wallet: %v", common.ErrStorage, err)
	}
	return expectOne(res, "insert")
}

func (r *SQLiteRepository) Update(ctx context.Context, w *models.SecuredWallet, expected int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallet
		SET credential_id = ?, wrapped_master_key = ?, mnemonic_iv = ?, encrypted_mnemonic = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?`,
		w.CredentialID, nonNil(w.WrappedMasterKey), nonNil(w.MnemonicIV), nonNil(w.EncryptedMnemonic),
		w.UpdatedAt.UnixNano(), w.ID, expected)
	if err != nil {
		return fmt.Errorf("%w: failed to update wallet: %v", common.ErrStorage, err)
	}
	return expectOne(res, "update")
}

func (r *SQLiteRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallet WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("%w: failed to check wallet: %v", common.ErrStorage, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wallet WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: failed to delete wallet: %v", common.ErrStorage, err)
	}
	return nil
}

func expectOne(res sql.Result, op string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %v", common.ErrStorage, err)
	}
	if ra != 1 {
		return fmt.Errorf("%w: wallet %s affected %d rows", common.ErrVersionConflict, op, ra)
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
