package publications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/dbx"
	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

const selectColumns = `id, user_id, title, about, tags, s3key, paper_hash, price, royalty_bps, status, tx_hash, created_at, updated_at`

// PostgresRepository implements publication storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts p and fills CreatedAt/UpdatedAt from the database.
// Status defaults to PENDING_ONCHAIN when empty.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Publication) error {
	if p.Status == "" {
		p.Status = models.StatusPendingOnchain
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	query := `
		INSERT INTO publications (id, user_id, title, about, tags, s3key, paper_hash, price, royalty_bps, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Title, p.About, string(tagsJSON), p.S3Key, p.PaperHash, int64(p.Price), int(p.RoyaltyBps), p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns common.ErrorNotFound when no row matches.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	query := `SELECT ` + selectColumns + ` FROM publications WHERE id=$1`

	p, err := scanPublication(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// List returns publications newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*models.Publication, error) {
	query := `SELECT ` + selectColumns + ` FROM publications ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.query(ctx, query, limit, offset)
}

// ListPendingBefore returns PENDING_ONCHAIN records created before cutoff,
// oldest first.
func (r *PostgresRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Publication, error) {
	query := `SELECT ` + selectColumns + ` FROM publications WHERE status=$1 AND created_at<$2 ORDER BY created_at`
	return r.query(ctx, query, models.StatusPendingOnchain, cutoff)
}

// Delete removes the record; authors and citations go with it (ON DELETE
// CASCADE). A missing row is common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM publications WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// UpdateStatus sets status and, when non-empty, the transaction hash.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status, txHash string) error {
	query := `
		UPDATE publications
		SET status=$2, tx_hash=COALESCE(NULLIF($3, ''), tx_hash), updated_at=now()
		WHERE id=$1
	`
	res, err := r.db.ExecContext(ctx, query, id, status, txHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Publication, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Publication{}
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPublication(s scanner) (*models.Publication, error) {
	var (
		p       models.Publication
		tags    []byte
		price   int64
		royalty int
		txHash  sql.NullString
	)
	err := s.Scan(&p.ID, &p.UserID, &p.Title, &p.About, &tags, &p.S3Key, &p.PaperHash,
		&price, &royalty, &p.Status, &txHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	p.Price = uint64(price)
	p.RoyaltyBps = uint16(royalty)
	p.TxHash = txHash.String
	return &p, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
