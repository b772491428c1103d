package citations

import (
	"context"

	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Citation) error
	ListByCiting(ctx context.Context, publicationID string) ([]*models.Citation, error)
}
