package wallet

import (
	"context"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
)

type Repository interface {
	// Get returns common.ErrNotFound when the record is absent.
	Get(ctx context.Context, id string) (*models.SecuredWallet, error)

	// Insert creates the record; an existing record is a version conflict.
	Insert(ctx context.Context, w *models.SecuredWallet) error

	// Update replaces the payload if the stored updated_at equals expected.
	// created_at is never rewritten.
	Update(ctx context.Context, w *models.SecuredWallet, expected int64) error

	// Exists reports whether the record is present.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes the record; deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}
