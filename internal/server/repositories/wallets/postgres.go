package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/dbx"
	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetPrimaryWallet returns common.ErrorNotFound when the user has no
// primary wallet.
func (r *PostgresRepository) GetPrimaryWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	query := `
		SELECT w.wallet_id, w.wallet_address, w.created_at, w.updated_at
		FROM wallets w
		JOIN user_wallets uw ON uw.wallet_id = w.wallet_id
		WHERE uw.user_id=$1 AND uw.is_primary
	`
	var w models.Wallet
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&w.WalletID, &w.WalletAddress, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &w, nil
}

// GetPrimaryWallets resolves several users at once. Users without a
// primary wallet are simply absent from the result.
func (r *PostgresRepository) GetPrimaryWallets(ctx context.Context, userIDs []string) ([]*models.UserWallet, error) {
	result := []*models.UserWallet{}
	if len(userIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := `
		SELECT uw.user_id, w.wallet_id, w.wallet_address, w.created_at, w.updated_at
		FROM wallets w
		JOIN user_wallets uw ON uw.wallet_id = w.wallet_id
		WHERE uw.is_primary AND uw.user_id IN (` + strings.Join(placeholders, ", ") + `)
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.UserWallet
		if err := rows.Scan(&item.UserID, &item.WalletID, &item.WalletAddress, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
