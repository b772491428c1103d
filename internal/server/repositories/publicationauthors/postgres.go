package publicationauthors

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

// AddAuthors links authorIDs to the publication, keeping slice order as
// author_order starting at 1. Run it inside the publication's transaction.
func (r *PostgresRepository) AddAuthors(ctx context.Context, publicationID string, authorIDs []string) error {
	query := `INSERT INTO publication_authors (publication_id, author_id, author_order) VALUES ($1, $2, $3)`
	for i, authorID := range authorIDs {
		if _, err := r.db.ExecContext(ctx, query, publicationID, authorID, i+1); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListByPublication(ctx context.Context, publicationID string) ([]*models.PublicationAuthor, error) {
	query := `SELECT publication_id, author_id, author_order FROM publication_authors WHERE publication_id=$1 ORDER BY author_order`
	rows, err := r.db.QueryContext(ctx, query, publicationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.PublicationAuthor{}
	for rows.Next() {
		var item models.PublicationAuthor
		if err := rows.Scan(&item.PublicationID, &item.AuthorID, &item.AuthorOrder); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
