package publications

import (
	"context"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Publication) error
	GetByID(ctx context.Context, id string) (*models.Publication, error)
	List(ctx context.Context, limit, offset int) ([]*models.Publication, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status, txHash string) error
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Publication, error)
}
