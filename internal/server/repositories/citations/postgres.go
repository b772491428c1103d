package citations

import (
	"context"
	"fmt"

	"github.com/DariusIMP/publish3-backend/internal/dbx"
	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts c. The caller assigns c.ID.
func (r *PostgresRepository) Create(ctx context.Context, c *models.Citation) error {
	query := `
		INSERT INTO citations (id, citing_publication_id, cited_publication_id, citation_context)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, c.ID, c.CitingPublicationID, c.CitedPublicationID, c.CitationContext).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByCiting returns the citations made by publicationID.
func (r *PostgresRepository) ListByCiting(ctx context.Context, publicationID string) ([]*models.Citation, error) {
	query := `
		SELECT id, citing_publication_id, cited_publication_id, citation_context, created_at
		FROM citations WHERE citing_publication_id=$1 ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, publicationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Citation{}
	for rows.Next() {
		var item models.Citation
		if err := rows.Scan(&item.ID, &item.CitingPublicationID, &item.CitedPublicationID, &item.CitationContext, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
