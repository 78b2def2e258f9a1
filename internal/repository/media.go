package repository

import (
	"context"
	"errors"

	"media-upload-go/internal/domain"
)

// ErrNotFound is returned when a ledger entry does not exist.
var ErrNotFound = errors.New("media not found")

// MediaRepository defines the operations on the upload ledger.
type MediaRepository interface {
	Create(ctx context.Context, m *domain.Media) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Media, error)
	// List returns the newest entries first. An empty category matches all.
	List(ctx context.Context, category string, limit int) ([]*domain.Media, error)
	Delete(ctx context.Context, id int64) error
	Totals(ctx context.Context) (domain.Totals, error)
}
