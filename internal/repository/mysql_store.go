package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// MySQL error numbers treated as retryable.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// MySQLStore implements Store on top of the per-table repos.  Every unit
// runs in one *sql.Tx that starts by locking the auction row.
type MySQLStore struct {
	db           *sql.DB
	Auctions     *AuctionRepo
	Bids         *BidRepo
	Transactions *TransactionRepo
}

// NewMySQLStore wires the repos around a shared pool.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:           db,
		Auctions:     NewAuctionRepo(db),
		Bids:         NewBidRepo(db),
		Transactions: NewTransactionRepo(db),
	}
}

func (s *MySQLStore) WithListing(ctx context.Context, listingID string, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := s.Auctions.LockTx(ctx, tx, listingID)
	if err != nil {
		return classify(err)
	}
	bids, err := s.Bids.ListByListingTx(ctx, tx, listingID)
	if err != nil {
		return classify(err)
	}
	if err := fn(ctx, &mysqlTx{store: s, tx: tx, auction: a, bids: bids}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) FindAuction(ctx context.Context, id string) (model.Auction, error) {
	return s.Auctions.FindByID(ctx, id)
}

func (s *MySQLStore) FindBid(ctx context.Context, id string) (model.Bid, error) {
	return s.Bids.FindByID(ctx, id)
}

func (s *MySQLStore) ListBids(ctx context.Context, q BidQuery) (BidPage, error) {
	return s.Bids.Page(ctx, q)
}

func (s *MySQLStore) ListBidderBids(ctx context.Context, q BidderQuery) (BidPage, error) {
	return s.Bids.PageByBidder(ctx, q)
}

func (s *MySQLStore) DueAuctions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.Auctions.DueIDs(ctx, now, limit)
}

func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// classify maps deadlocks and lock wait timeouts to ErrConflict and leaves
// every other error untouched.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == errDeadlock || me.Number == errLockWaitTimeout) {
		return fmt.Errorf("%w: %s", ErrConflict, me.Message)
	}
	return err
}

type mysqlTx struct {
	store   *MySQLStore
	tx      *sql.Tx
	auction model.Auction
	bids    []model.Bid
}

func (t *mysqlTx) Auction() model.Auction { return t.auction }

func (t *mysqlTx) Bids() []model.Bid { return append([]model.Bid(nil), t.bids...) }

func (t *mysqlTx) InsertBid(ctx context.Context, b *model.Bid) error {
	if err := t.store.Bids.InsertTx(ctx, t.tx, b); err != nil {
		return err
	}
	t.bids = append(t.bids, *b)
	return nil
}

func (t *mysqlTx) UpdateBid(ctx context.Context, b model.Bid) error {
	if err := t.store.Bids.UpdateTx(ctx, t.tx, b); err != nil {
		return err
	}
	for i := range t.bids {
		if t.bids[i].ID == b.ID {
			t.bids[i] = b
		}
	}
	return nil
}

func (t *mysqlTx) SaveAuction(ctx context.Context, a model.Auction) error {
	if err := t.store.Auctions.UpdateTx(ctx, t.tx, a); err != nil {
		return err
	}
	t.auction = a
	return nil
}

func (t *mysqlTx) InsertTransaction(ctx context.Context, tr model.Transaction) error {
	return t.store.Transactions.CreateTx(ctx, t.tx, tr)
}
