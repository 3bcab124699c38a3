// Package accounts stores panel accounts and their quota fields.
package accounts

import (
	"context"
	"time"

	"github.com/boleyla/panel/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	// GetByIDForUpdate locks the account row until the enclosing transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error)
	Exists(ctx context.Context, id int64) (bool, error)
	UpdateDataLimit(ctx context.Context, id int64, limit int64) error
	UpdateExpireAt(ctx context.Context, id int64, expireAt time.Time) error
}
