// Package profiles reads config profiles as render-ready views.
package profiles

import (
	"context"

	"github.com/boleyla/panel/internal/server/models"
)

type Repository interface {
	// ListActiveViews returns active profiles in ascending id order, each with
	// its account and server resolved. A vanished reference is left nil.
	ListActiveViews(ctx context.Context) ([]models.ProfileView, error)
}
