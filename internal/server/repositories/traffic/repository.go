// Package traffic stores the per-account traffic ledger.
package traffic

import (
	"context"

	"github.com/boleyla/panel/internal/server/models"
)

// AccountLedger pairs an account with its ledger row.
type AccountLedger struct {
	Account models.Account
	Ledger  models.TrafficLedger
}

type Repository interface {
	GetByAccount(ctx context.Context, accountID int64) (*models.TrafficLedger, error)
	// GetByAccountForUpdate locks the ledger row until the enclosing transaction ends.
	GetByAccountForUpdate(ctx context.Context, accountID int64) (*models.TrafficLedger, error)
	// Update writes counters and reset bookkeeping. Total is derived by the store.
	Update(ctx context.Context, l *models.TrafficLedger) (*models.TrafficLedger, error)
	ListWithAccounts(ctx context.Context, offset, limit int) ([]AccountLedger, error)
	Top(ctx context.Context, limit int) ([]models.TopUser, error)
	Totals(ctx context.Context) (*models.SystemTotals, error)
}
