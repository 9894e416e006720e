package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// AuctionRepo reads and writes the auctions table.  Mutations are only
// offered in their ...Tx form because every change to an auction row must
// share a transaction with the bid ledger change that caused it.
type AuctionRepo struct {
	db *sql.DB
}

// NewAuctionRepo constructs an AuctionRepo given a DB handle.
func NewAuctionRepo(db *sql.DB) *AuctionRepo { return &AuctionRepo{db: db} }

const auctionColumns = `id, seller_id, status, currency, starting_price, current_bid, bid_count,
	min_increment, reserve_price, reserve_met, winning_bidder_id, end_time, extension_count,
	max_extensions, decision_deadline, ended_at, suspicious_activity, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(s rowScanner) (model.Auction, error) {
	var (
		a        model.Auction
		winner   sql.NullString
		deadline sql.NullTime
		endedAt  sql.NullTime
	)
	err := s.Scan(
		&a.ID, &a.SellerID, &a.Status, &a.Currency, &a.StartingPrice, &a.CurrentBid, &a.BidCount,
		&a.MinIncrement, &a.ReservePrice, &a.ReserveMet, &winner, &a.EndTime, &a.ExtensionCount,
		&a.MaxExtensions, &deadline, &endedAt, &a.SuspiciousActivity, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Auction{}, err
	}
	a.WinningBidderID = winner.String
	a.DecisionDeadline = timePtr(deadline)
	a.EndedAt = timePtr(endedAt)
	return a, nil
}

// FindByID loads an auction without locking it.
func (r *AuctionRepo) FindByID(ctx context.Context, id string) (model.Auction, error) {
	a, err := scanAuction(r.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, ErrNotFound
	}
	return a, err
}

// LockTx loads the auction row with SELECT ... FOR UPDATE.  The row stays
// locked until tx commits or rolls back, which serializes every unit of
// work on the listing.
func (r *AuctionRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (model.Auction, error) {
	a, err := scanAuction(tx.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, ErrNotFound
	}
	return a, err
}

// UpdateTx writes back the columns the engine maintains.  updated_at is
// refreshed by the column default.
func (r *AuctionRepo) UpdateTx(ctx context.Context, tx *sql.Tx, a model.Auction) error {
	const q = `UPDATE auctions SET status = ?, current_bid = ?, bid_count = ?, reserve_met = ?,
		winning_bidder_id = ?, end_time = ?, extension_count = ?, decision_deadline = ?,
		ended_at = ?, suspicious_activity = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q,
		a.Status, a.CurrentBid, a.BidCount, a.ReserveMet,
		nullString(a.WinningBidderID), a.EndTime, a.ExtensionCount, nullTime(a.DecisionDeadline),
		nullTime(a.EndedAt), a.SuspiciousActivity, a.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DueIDs lists active auctions whose end_time has passed, earliest first.
func (r *AuctionRepo) DueIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM auctions WHERE status = ? AND end_time <= ? ORDER BY end_time, id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.AuctionActive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requireRow turns an UPDATE that matched nothing into ErrNotFound.  The
// DSN sets clientFoundRows so matched-but-unchanged rows still count.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
