package config

import "time"

// AuctionConfig carries the engine tunables.  Every value has a default and
// may be overridden through the AUCTION_* variables.
type AuctionConfig struct {
	ExtensionWindow      time.Duration // remaining time at or below which a bid extends the auction
	ExtensionDuration    time.Duration // how far one extension pushes end_time
	RetractionWindow     time.Duration // how long after placement a bid may be retracted
	DecisionWindow       time.Duration // seller decision period after ended_reserve_not_met
	DefaultMaxExtensions int           // used when a seeded auction carries no max_extensions
	MaxProxySteps        int           // upper bound for one proxy cascade
	MaxTxRetries         int           // retries on deadlock / lock wait timeout
	SettleConcurrency    int           // auctions settled in parallel per sweep
	SettleBatchSize      int           // due auctions fetched per sweep
	SuspiciousBids       int           // bids per bidder above which the auction is flagged
	SuspiciousWindow     time.Duration // window for SuspiciousBids
}

// DefaultAuctionConfig returns the values used when no variable is set.
func DefaultAuctionConfig() AuctionConfig {
	return AuctionConfig{
		ExtensionWindow:      5 * time.Minute,
		ExtensionDuration:    5 * time.Minute,
		RetractionWindow:     5 * time.Minute,
		DecisionWindow:       48 * time.Hour,
		DefaultMaxExtensions: 10,
		MaxProxySteps:        200,
		MaxTxRetries:         3,
		SettleConcurrency:    4,
		SettleBatchSize:      100,
		SuspiciousBids:       5,
		SuspiciousWindow:     5 * time.Minute,
	}
}

// LoadAuctionConfig overlays AUCTION_* variables on the defaults.
// Non-positive values are replaced by the default.
func LoadAuctionConfig() AuctionConfig {
	d := DefaultAuctionConfig()
	c := AuctionConfig{
		ExtensionWindow:      envDur("AUCTION_EXTENSION_WINDOW", d.ExtensionWindow),
		ExtensionDuration:    envDur("AUCTION_EXTENSION_DURATION", d.ExtensionDuration),
		RetractionWindow:     envDur("AUCTION_RETRACTION_WINDOW", d.RetractionWindow),
		DecisionWindow:       envDur("AUCTION_RESERVE_DECISION_WINDOW", d.DecisionWindow),
		DefaultMaxExtensions: envInt("AUCTION_DEFAULT_MAX_EXTENSIONS", d.DefaultMaxExtensions),
		MaxProxySteps:        envInt("AUCTION_MAX_PROXY_STEPS", d.MaxProxySteps),
		MaxTxRetries:         envInt("AUCTION_TX_RETRIES", d.MaxTxRetries),
		SettleConcurrency:    envInt("AUCTION_SETTLE_CONCURRENCY", d.SettleConcurrency),
		SettleBatchSize:      envInt("AUCTION_SETTLE_BATCH", d.SettleBatchSize),
		SuspiciousBids:       envInt("AUCTION_SUSPICIOUS_BIDS", d.SuspiciousBids),
		SuspiciousWindow:     envDur("AUCTION_SUSPICIOUS_WINDOW", d.SuspiciousWindow),
	}
	return c.Normalize()
}

// Normalize replaces out-of-range values with the defaults.  Durations and
// counters that drive loops must be positive; extension and retry limits may
// be zero.
func (c AuctionConfig) Normalize() AuctionConfig {
	d := DefaultAuctionConfig()
	if c.ExtensionWindow <= 0 {
		c.ExtensionWindow = d.ExtensionWindow
	}
	if c.ExtensionDuration <= 0 {
		c.ExtensionDuration = d.ExtensionDuration
	}
	if c.RetractionWindow <= 0 {
		c.RetractionWindow = d.RetractionWindow
	}
	if c.DecisionWindow <= 0 {
		c.DecisionWindow = d.DecisionWindow
	}
	if c.DefaultMaxExtensions < 0 {
		c.DefaultMaxExtensions = d.DefaultMaxExtensions
	}
	if c.MaxProxySteps < 1 {
		c.MaxProxySteps = d.MaxProxySteps
	}
	if c.MaxTxRetries < 0 {
		c.MaxTxRetries = d.MaxTxRetries
	}
	if c.SettleConcurrency < 1 {
		c.SettleConcurrency = d.SettleConcurrency
	}
	if c.SettleBatchSize < 1 {
		c.SettleBatchSize = d.SettleBatchSize
	}
	if c.SuspiciousBids < 1 {
		c.SuspiciousBids = d.SuspiciousBids
	}
	if c.SuspiciousWindow <= 0 {
		c.SuspiciousWindow = d.SuspiciousWindow
	}
	return c
}
