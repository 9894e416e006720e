package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// TransactionRepo stores settlement records.  Payment capture happens
// elsewhere; the engine only writes the pending row.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo constructs a TransactionRepo given a DB handle.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// CreateTx inserts a settlement record.  listing_id is unique, so a second
// settlement of the same auction fails instead of duplicating the sale.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t model.Transaction) error {
	const q = `INSERT INTO auction_transactions (id, listing_id, bid_id, seller_id, buyer_id, amount, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, t.ID, t.ListingID, t.BidID, t.SellerID, t.BuyerID, t.Amount, t.Currency, t.Status, t.CreatedAt)
	return err
}
