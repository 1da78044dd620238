package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/dbx"
)

// SQLiteRepository implements Repository over dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, public_key, counter, device_type, backed_up, transports, created_at`

func (r *SQLiteRepository) Create(ctx context.Context, c *models.Credential) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: credential id is empty", common.ErrInvalidInput)
	}

	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE id = ?`, c.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: failed to check credential: %v", common.ErrStorage, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: credential %s already stored", common.ErrVersionConflict, c.ID)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, public_key, counter, device_type, backed_up, transports, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nonNil(c.PublicKey), c.Counter, c.DeviceType, c.BackedUp,
		strings.Join(c.Transports, ","), c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: failed to insert credential: %v", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM credentials ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select credentials: %v", common.ErrStorage, err)
	}
	defer rows.Close()

	var result []models.Credential
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate credentials: %v", common.ErrStorage, err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM credentials WHERE id = ?`, id)
	c, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("%w: failed to clear credentials: %v", common.ErrStorage, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Credential, error) {
	var (
		c          models.Credential
		transports string
		createdAt  int64
	)
	err := s.Scan(&c.ID, &c.PublicKey, &c.Counter, &c.DeviceType, &c.BackedUp, &transports, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan credential: %v", common.ErrStorage, err)
	}
	if transports != "" {
		c.Transports = strings.Split(transports, ",")
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return &c, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
