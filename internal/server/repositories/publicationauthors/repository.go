package publicationauthors

import (
	"context"

	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

type Repository interface {
	AddAuthors(ctx context.Context, publicationID string, authorIDs []string) error
	ListByPublication(ctx context.Context, publicationID string) ([]*models.PublicationAuthor, error)
}
