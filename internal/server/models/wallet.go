package models

import "time"

// Wallet is a custodial wallet known to the backend. WalletID is the
// custodian's id; WalletAddress is the ledger account it controls.
type Wallet struct {
	WalletID      string    `json:"wallet_id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserWallet is the primary wallet of a user together with the user id, as
// returned by batch lookups.
type UserWallet struct {
	UserID string
	Wallet
}
