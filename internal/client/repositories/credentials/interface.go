package credentials

import (
	"context"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
)

// Repository stores Credential records.
type Repository interface {
	// Create inserts a credential; a duplicate ID is a version conflict.
	Create(ctx context.Context, c *models.Credential) error

	// GetAll returns credentials in insertion order.
	GetAll(ctx context.Context) ([]models.Credential, error)

	// GetByID returns common.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.Credential, error)

	// Clear removes every credential.
	Clear(ctx context.Context) error
}
