package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/vehicle-auction-engine/internal/handler"    // handlers that drive the auction engine
	"github.com/iliyamo/vehicle-auction-engine/internal/middleware" // JWT, role, rate limit and cache middleware
)

// BidderRoles may place, retract and auto-bid.
var BidderRoles = []string{"user", "dealer", "admin"}

// Deps bundles everything the routes need.  RateLimit and Cache may be
// pass-through middleware when Redis is not configured.
type Deps struct {
	Auctions  *handler.AuctionHandler
	Live      *handler.LiveHandler
	Cron      *handler.CronHandler
	Health    echo.HandlerFunc
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	if d.RateLimit == nil {
		d.RateLimit = noop
	}
	if d.Cache == nil {
		d.Cache = noop
	}

	// Load balancers and monitoring poll this endpoint.
	e.GET("/healthz", d.Health)

	RegisterPublic(e, d)
	RegisterBidder(e, d)

	// The scheduler authenticates with the cron secret, not a user token.
	e.POST("/v1/cron/settle-auctions", d.Cron.SettleAuctions)
}

// RegisterPublic registers the unauthenticated read endpoints.  Status is
// cached briefly because clients poll it near the end of an auction.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/v1/auctions/:id/status", d.Auctions.Status, d.Cache)
	e.GET("/v1/auctions/:id/bids", d.Auctions.History)
	e.GET("/v1/auctions/:id/live", d.Live.Stream)
}

// RegisterBidder registers the mutating endpoints and the reads of a
// bidder's own bids.  Every route requires a valid access token; the
// placing routes are also rate limited per user.
func RegisterBidder(e *echo.Echo, d Deps) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(d.JWTSecret))
	g.Use(middleware.RequireRole(BidderRoles...))

	g.POST("/auctions/:id/bids", d.Auctions.PlaceBid, d.RateLimit)
	g.POST("/auctions/:id/auto-bid", d.Auctions.SetupAutoBid, d.RateLimit)
	g.DELETE("/auctions/:id/auto-bid", d.Auctions.CancelAutoBid)
	g.POST("/bids/:id/retract", d.Auctions.RetractBid)
	g.GET("/bids/mine", d.Auctions.MyBids)
	g.GET("/bids/:id", d.Auctions.GetBid)
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }
