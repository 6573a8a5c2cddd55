package store

import (
	"context"

	"github.com/joescharf/magi/internal/models"
)

// ReviewListFilter specifies filters for listing review records.
type ReviewListFilter struct {
	Status models.RecordStatus
	Limit  int
}

// Store defines the persistence interface for review history.
type Store interface {
	CreateReview(ctx context.Context, r *models.ReviewRecord) error
	GetReview(ctx context.Context, id string) (*models.ReviewRecord, error)
	FindReview(ctx context.Context, idOrPrefix string) (*models.ReviewRecord, error)
	ListReviews(ctx context.Context, filter ReviewListFilter) ([]*models.ReviewRecord, error)
	DeleteReview(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
