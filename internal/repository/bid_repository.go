package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// BidRepo encapsulates database operations for the bids ledger.  Rows are
// never deleted; only status, auto_bid_active and the retraction columns
// change after insert.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo constructs a BidRepo given a DB handle.
func NewBidRepo(db *sql.DB) *BidRepo { return &BidRepo{db: db} }

const bidColumns = `id, seq, listing_id, bidder_id, amount, placed_at, is_auto_bid, max_auto_bid,
	auto_bid_active, status, retraction_reason, retracted_at`

func scanBid(s rowScanner) (model.Bid, error) {
	var (
		b         model.Bid
		reason    sql.NullString
		retracted sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.Seq, &b.ListingID, &b.BidderID, &b.Amount, &b.PlacedAt, &b.IsAutoBid, &b.MaxAutoBid,
		&b.AutoBidActive, &b.Status, &reason, &retracted,
	)
	if err != nil {
		return model.Bid{}, err
	}
	b.RetractionReason = reason.String
	b.RetractedAt = timePtr(retracted)
	return b, nil
}

func scanBids(rows *sql.Rows) ([]model.Bid, error) {
	defer rows.Close()
	var out []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindByID returns a single bid or ErrNotFound.
func (r *BidRepo) FindByID(ctx context.Context, id string) (model.Bid, error) {
	b, err := scanBid(r.db.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bid{}, ErrNotFound
	}
	return b, err
}

// ListByListingTx loads the full ledger of one listing in seq order.  The
// caller holds the auction row lock, so no other writer can append to it.
func (r *BidRepo) ListByListingTx(ctx context.Context, tx *sql.Tx, listingID string) ([]model.Bid, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE listing_id = ? ORDER BY seq`, listingID)
	if err != nil {
		return nil, err
	}
	return scanBids(rows)
}

// InsertTx appends a bid and populates its seq from the AUTO_INCREMENT
// column.
func (r *BidRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Bid) error {
	const q = `INSERT INTO bids (id, listing_id, bidder_id, amount, placed_at, is_auto_bid, max_auto_bid,
		auto_bid_active, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.ID, b.ListingID, b.BidderID, b.Amount, b.PlacedAt, b.IsAutoBid, b.MaxAutoBid,
		b.AutoBidActive, b.Status,
	)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.Seq = uint64(seq)
	return nil
}

// UpdateTx rewrites the mutable columns of a bid.
func (r *BidRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b model.Bid) error {
	const q = `UPDATE bids SET status = ?, auto_bid_active = ?, retraction_reason = ?, retracted_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, b.Status, b.AutoBidActive, nullString(b.RetractionReason), nullTime(b.RetractedAt), b.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Page returns one page of a listing's history ordered by placed_at, then
// seq, together with the total count of matching rows.
func (r *BidRepo) Page(ctx context.Context, q BidQuery) (BidPage, error) {
	where := `WHERE listing_id = ?`
	args := []any{q.ListingID}
	if !q.IncludeRetracted {
		where += ` AND status <> ?`
		args = append(args, model.BidRetracted)
	}

	var page BidPage
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bids `+where, args...).Scan(&page.Total); err != nil {
		return BidPage{}, err
	}

	order := ` ORDER BY placed_at DESC, seq DESC`
	if q.Ascending {
		order = ` ORDER BY placed_at ASC, seq ASC`
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+bidColumns+` FROM bids `+where+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return BidPage{}, err
	}
	items, err := scanBids(rows)
	if err != nil {
		return BidPage{}, err
	}
	if items == nil {
		items = []model.Bid{}
	}
	page.Items = items
	return page, nil
}

// PageByBidder returns one page of a bidder's bids across every listing,
// newest first, together with the total count of matching rows.
func (r *BidRepo) PageByBidder(ctx context.Context, q BidderQuery) (BidPage, error) {
	where := `WHERE bidder_id = ?`
	args := []any{q.BidderID}
	if len(q.Statuses) > 0 {
		where += ` AND status IN (?` + strings.Repeat(`, ?`, len(q.Statuses)-1) + `)`
		for _, st := range q.Statuses {
			args = append(args, st)
		}
	}

	var page BidPage
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bids `+where, args...).Scan(&page.Total); err != nil {
		return BidPage{}, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+bidColumns+` FROM bids `+where+` ORDER BY placed_at DESC, seq DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return BidPage{}, err
	}
	items, err := scanBids(rows)
	if err != nil {
		return BidPage{}, err
	}
	if items == nil {
		items = []model.Bid{}
	}
	page.Items = items
	return page, nil
}
