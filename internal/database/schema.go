package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
// Money columns are DECIMAL(14,2); timestamps keep microseconds so bids
// placed within the same second still order by placed_at before seq.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		display_name VARCHAR(120) NOT NULL,
		is_dealer    BOOLEAN      NOT NULL DEFAULT FALSE,
		dealer_name  VARCHAR(160) NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS auctions (
		id                  CHAR(36)      NOT NULL PRIMARY KEY,
		seller_id           CHAR(36)      NOT NULL,
		status              VARCHAR(32)   NOT NULL DEFAULT 'draft',
		currency            CHAR(3)       NOT NULL DEFAULT 'EUR',
		starting_price      DECIMAL(14,2) NOT NULL,
		current_bid         DECIMAL(14,2) NOT NULL,
		bid_count           INT           NOT NULL DEFAULT 0,
		min_increment       DECIMAL(14,2) NOT NULL DEFAULT 0,
		reserve_price       DECIMAL(14,2) NULL,
		reserve_met         BOOLEAN       NOT NULL DEFAULT FALSE,
		winning_bidder_id   CHAR(36)      NULL,
		end_time            DATETIME(6)   NOT NULL,
		extension_count     INT           NOT NULL DEFAULT 0,
		max_extensions      INT           NOT NULL DEFAULT 10,
		decision_deadline   DATETIME(6)   NULL,
		ended_at            DATETIME(6)   NULL,
		suspicious_activity BOOLEAN       NOT NULL DEFAULT FALSE,
		created_at          DATETIME(6)   NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at          DATETIME(6)   NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		KEY idx_auctions_due (status, end_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bids (
		id                CHAR(36)        NOT NULL PRIMARY KEY,
		seq               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT UNIQUE,
		listing_id        CHAR(36)        NOT NULL,
		bidder_id         CHAR(36)        NOT NULL,
		amount            DECIMAL(14,2)   NOT NULL,
		placed_at         DATETIME(6)     NOT NULL,
		is_auto_bid       BOOLEAN         NOT NULL DEFAULT FALSE,
		max_auto_bid      DECIMAL(14,2)   NULL,
		auto_bid_active   BOOLEAN         NOT NULL DEFAULT FALSE,
		status            VARCHAR(16)     NOT NULL,
		retraction_reason VARCHAR(500)    NULL,
		retracted_at      DATETIME(6)     NULL,
		KEY idx_bids_listing_placed (listing_id, placed_at, seq),
		KEY idx_bids_bidder (bidder_id),
		CONSTRAINT fk_bids_auction FOREIGN KEY (listing_id) REFERENCES auctions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS auction_transactions (
		id         CHAR(36)      NOT NULL PRIMARY KEY,
		listing_id CHAR(36)      NOT NULL UNIQUE,
		bid_id     CHAR(36)      NOT NULL,
		seller_id  CHAR(36)      NOT NULL,
		buyer_id   CHAR(36)      NOT NULL,
		amount     DECIMAL(14,2) NOT NULL,
		currency   CHAR(3)       NOT NULL,
		status     VARCHAR(16)   NOT NULL DEFAULT 'pending',
		created_at DATETIME(6)   NOT NULL,
		CONSTRAINT fk_tx_auction FOREIGN KEY (listing_id) REFERENCES auctions(id),
		CONSTRAINT fk_tx_bid FOREIGN KEY (bid_id) REFERENCES bids(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the engine tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
