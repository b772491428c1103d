package wallets

import (
	"context"

	"github.com/DariusIMP/publish3-backend/internal/server/models"
)

type Repository interface {
	GetPrimaryWallet(ctx context.Context, userID string) (*models.Wallet, error)
	GetPrimaryWallets(ctx context.Context, userIDs []string) ([]*models.UserWallet, error)
}
