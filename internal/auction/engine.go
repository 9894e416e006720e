// Package auction implements the bidding engine: bid acceptance, proxy
// bidding, auto-bid registration, retraction and settlement.  Every
// mutation runs inside one repository.Store unit for its listing, so the
// auction row and the bid ledger always change together.
package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vehicle-auction-engine/internal/config"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

//go:generate mockgen -source=engine.go -destination=publisher_mock_test.go -package=auction Publisher

// Publisher receives events after their unit has committed.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Deps are the collaborators owned by the process entry point.  Store is
// required; Profiles may be nil, in which case bid history carries no
// profile data.  Now and NewID default to the UTC wall clock and UUIDv4.
type Deps struct {
	Store      repository.Store
	Profiles   repository.ProfileReader
	Publishers []Publisher
	Now        func() time.Time
	NewID      func() string
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg        config.AuctionConfig
	store      repository.Store
	profiles   repository.ProfileReader
	publishers []Publisher
	now        func() time.Time
	newID      func() string

	// PublishTimeout bounds delivery of the events of one operation.
	PublishTimeout time.Duration
}

// New builds an Engine.
func New(cfg config.AuctionConfig, deps Deps) *Engine {
	e := &Engine{
		cfg:            cfg.Normalize(),
		store:          deps.Store,
		profiles:       deps.Profiles,
		publishers:     deps.Publishers,
		now:            deps.Now,
		newID:          deps.NewID,
		PublishTimeout: 5 * time.Second,
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// atomic runs fn against a fresh ledger inside one listing unit and flushes
// the ledger when fn succeeds.  Lock contention reported by the store is
// retried up to MaxTxRetries times.  The clock is read after the lock is
// held so every check sees the time the unit actually ran.
func (e *Engine) atomic(ctx context.Context, listingID string, fn func(ctx context.Context, l *ledger) error) (*ledger, error) {
	for attempt := 0; ; attempt++ {
		var l *ledger
		err := e.store.WithListing(ctx, listingID, func(ctx context.Context, tx repository.LedgerTx) error {
			l = newLedger(e, tx, e.now())
			if err := fn(ctx, l); err != nil {
				return err
			}
			return l.flush(ctx)
		})
		switch {
		case err == nil:
			return l, nil
		case l == nil && errors.Is(err, repository.ErrNotFound):
			return nil, ErrAuctionNotFound
		case errors.Is(err, repository.ErrConflict) && attempt < e.cfg.MaxTxRetries:
			utils.Warn("listing unit conflict, retrying", map[string]any{
				"listing_id": listingID,
				"attempt":    attempt + 1,
				"error":      err.Error(),
			})
			continue
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		default:
			return nil, err
		}
	}
}

// publish delivers events to every publisher and returns the number of
// failed deliveries.  Failures are logged and never surface to the caller.
func (e *Engine) publish(ctx context.Context, events []queue.Event) int {
	if len(events) == 0 || len(e.publishers) == 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.PublishTimeout)
	defer cancel()

	failed := 0
	for _, ev := range events {
		for _, p := range e.publishers {
			if err := p.Publish(ctx, ev); err != nil {
				failed++
				utils.Warn("event publish failed", map[string]any{
					"type":       ev.Type,
					"listing_id": ev.ListingID,
					"error":      err.Error(),
				})
			}
		}
	}
	return failed
}
