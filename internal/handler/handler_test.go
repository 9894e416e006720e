package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vehicle-auction-engine/internal/auction"
	"github.com/iliyamo/vehicle-auction-engine/internal/config"
	"github.com/iliyamo/vehicle-auction-engine/internal/live"
	"github.com/iliyamo/vehicle-auction-engine/internal/middleware"
	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

const (
	jwtSecret  = "handler-secret"
	cronSecret = "cron-secret"
)

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type server struct {
	e     *echo.Echo
	store *repository.MemoryStore
	clock *clock
	live  *live.Broadcaster
}

// newServer wires the handlers the way cmd/server does, without Redis.
func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{store: repository.NewMemoryStore(), clock: &clock{t: t0}, live: live.NewBroadcaster()}
	s.store.AddAuction(model.Auction{
		ID:            "car-1",
		SellerID:      "seller",
		Status:        model.AuctionActive,
		Currency:      "EUR",
		StartingPrice: decimal.NewFromInt(1000),
		CurrentBid:    decimal.NewFromInt(1000),
		MinIncrement:  decimal.NewFromInt(100),
		EndTime:       t0.Add(time.Hour),
		MaxExtensions: 3,
	})
	s.store.AddProfile(model.Profile{ID: "alice", DisplayName: "Alice", IsDealer: true, DealerName: "Alice Motors"})

	engine := auction.New(config.DefaultAuctionConfig(), auction.Deps{
		Store:      s.store,
		Profiles:   s.store,
		Publishers: []auction.Publisher{s.live},
		Now:        s.clock.Now,
	})
	h := NewAuctionHandler(engine)
	cron := &CronHandler{Engine: engine, Secret: cronSecret}
	lh := NewLiveHandler(engine, s.live)

	s.e = echo.New()
	s.e.GET("/healthz", Health(s.store))
	s.e.GET("/v1/auctions/:id/status", h.Status)
	s.e.GET("/v1/auctions/:id/bids", h.History)
	s.e.GET("/v1/auctions/:id/live", lh.Stream)
	s.e.POST("/v1/cron/settle-auctions", cron.SettleAuctions)
	g := s.e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.POST("/auctions/:id/auto-bid", h.SetupAutoBid)
	g.DELETE("/auctions/:id/auto-bid", h.CancelAutoBid)
	g.POST("/bids/:id/retract", h.RetractBid)
	g.GET("/bids/mine", h.MyBids)
	g.GET("/bids/:id", h.GetBid)
	return s
}

func (s *server) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		tok, err := utils.NewAccessToken(jwtSecret, user, "user", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestPlaceBid(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "1100.00", body["current_bid"])
	require.Equal(t, "1200.00", body["next_minimum_bid"])
	require.EqualValues(t, 1, body["bid_count"])
	require.Equal(t, "alice", body["winning_bidder_id"])
	bid := body["bid"].(map[string]any)
	require.Equal(t, "WINNING", bid["status"])
	require.Equal(t, "1100.00", bid["amount"])

	// numbers are accepted as well as strings
	rec, _ = s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "bob", `{"amount": 1200}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestPlaceBidErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		user     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"no token", "/v1/auctions/car-1/bids", "", `{"amount": "1100"}`, http.StatusUnauthorized, "unauthorized"},
		{"malformed body", "/v1/auctions/car-1/bids", "alice", `{"amount":`, http.StatusBadRequest, "bad_request"},
		{"too many decimals", "/v1/auctions/car-1/bids", "alice", `{"amount": "1100.001"}`, http.StatusBadRequest, "invalid_amount"},
		{"missing amount", "/v1/auctions/car-1/bids", "alice", `{}`, http.StatusBadRequest, "invalid_amount"},
		{"below minimum", "/v1/auctions/car-1/bids", "alice", `{"amount": "1050"}`, http.StatusBadRequest, "bid_too_low"},
		{"seller", "/v1/auctions/car-1/bids", "seller", `{"amount": "1100"}`, http.StatusForbidden, "self_bid_forbidden"},
		{"unknown auction", "/v1/auctions/nope/bids", "alice", `{"amount": "1100"}`, http.StatusNotFound, "auction_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			rec, body := s.do(t, http.MethodPost, tt.path, tt.user, tt.body)
			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, tt.wantErr, body["error"])
			if tt.wantErr == "bid_too_low" {
				require.Equal(t, "1100.00", body["minimum_bid"])
			}
		})
	}
}

func TestAutoBidLifecycle(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(t, http.MethodPost, "/v1/auctions/car-1/auto-bid", "alice", `{"max_amount": "2000"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := body["auto_bid"].(map[string]any)
	require.Equal(t, "2000.00", reg["max_auto_bid"], "owner sees own ceiling")
	require.Equal(t, true, reg["auto_bid_active"])
	require.Equal(t, "1100.00", body["current_bid"])

	rec, body = s.do(t, http.MethodPost, "/v1/auctions/car-1/auto-bid", "alice", `{"max_amount": "3000"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "duplicate_auto_bid", body["error"])

	// bob is answered by alice's proxy; the proxy bid must not leak her ceiling
	rec, body = s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "bob", `{"amount": "1500"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "1600.00", body["current_bid"])
	require.Equal(t, "alice", body["winning_bidder_id"])
	proxies := body["proxy_bids"].([]any)
	require.Len(t, proxies, 1)
	require.NotContains(t, proxies[0].(map[string]any), "max_auto_bid")

	rec, body = s.do(t, http.MethodDelete, "/v1/auctions/car-1/auto-bid", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["auto_bid"].(map[string]any)["auto_bid_active"])

	rec, body = s.do(t, http.MethodDelete, "/v1/auctions/car-1/auto-bid", "alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "auto_bid_not_found", body["error"])
}

func TestRetractBid(t *testing.T) {
	s := newServer(t)
	_, first := s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1100"}`)
	_, second := s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "bob", `{"amount": "1200"}`)
	bobBid := second["bid"].(map[string]any)["id"].(string)
	const reason = `{"reason": "entered the wrong amount"}`

	rec, body := s.do(t, http.MethodPost, "/v1/bids/"+bobBid+"/retract", "alice", reason)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", body["error"])

	rec, body = s.do(t, http.MethodPost, "/v1/bids/"+bobBid+"/retract", "bob", reason)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1100.00", body["current_bid"])
	require.EqualValues(t, 1, body["bid_count"])
	require.Equal(t, "alice", body["winning_bidder_id"])
	require.Equal(t, "RETRACTED", body["bid"].(map[string]any)["status"])

	rec, body = s.do(t, http.MethodPost, "/v1/bids/"+bobBid+"/retract", "bob", reason)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "already_final", body["error"])

	aliceBid := first["bid"].(map[string]any)["id"].(string)
	s.clock.Advance(6 * time.Minute)
	rec, body = s.do(t, http.MethodPost, "/v1/bids/"+aliceBid+"/retract", "alice", reason)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "retraction_window_expired", body["error"])

	rec, body = s.do(t, http.MethodPost, "/v1/bids/missing/retract", "alice", reason)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "bid_not_found", body["error"])
}

func TestRetractBidReasonLength(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing", "", http.StatusBadRequest},
		{"too short", `{"reason": "typo"}`, http.StatusBadRequest},
		{"too long", `{"reason": "` + strings.Repeat("a", 501) + `"}`, http.StatusBadRequest},
		{"500 multi-byte runes", `{"reason": "` + strings.Repeat("ü", 500) + `"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			_, placed := s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1100"}`)
			id := placed["bid"].(map[string]any)["id"].(string)

			rec, body := s.do(t, http.MethodPost, "/v1/bids/"+id+"/retract", "alice", tt.body)
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusBadRequest {
				require.Equal(t, "invalid_reason", body["error"])
			}
		})
	}
}

func TestGetBid(t *testing.T) {
	s := newServer(t)
	rec, placed := s.do(t, http.MethodPost, "/v1/auctions/car-1/auto-bid", "alice", `{"max_amount": "2000"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := placed["auto_bid"].(map[string]any)["id"].(string)

	tests := []struct {
		viewer      string
		wantCeiling bool
	}{
		{"alice", true},
		{"seller", true},
		{"bob", false},
	}
	for _, tt := range tests {
		t.Run(tt.viewer, func(t *testing.T) {
			rec, body := s.do(t, http.MethodGet, "/v1/bids/"+id, tt.viewer, "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, id, body["id"])
			require.Equal(t, "1100.00", body["amount"])
			if tt.wantCeiling {
				require.Equal(t, "2000.00", body["max_auto_bid"])
			} else {
				require.NotContains(t, body, "max_auto_bid")
			}
		})
	}

	rec, body := s.do(t, http.MethodGet, "/v1/bids/missing", "bob", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "bid_not_found", body["error"])
}

func TestMyBids(t *testing.T) {
	s := newServer(t)
	s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1100"}`)
	s.clock.Advance(time.Second)
	s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "bob", `{"amount": "1200"}`)
	s.clock.Advance(time.Second)
	s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1300"}`)

	amounts := func(body map[string]any) []string {
		var out []string
		for _, it := range body["items"].([]any) {
			out = append(out, it.(map[string]any)["amount"].(string))
		}
		return out
	}

	tests := []struct {
		name  string
		query string
		want  []string
		total float64
	}{
		{"all", "", []string{"1300.00", "1100.00"}, 2},
		{"status filter any case", "?status=outbid", []string{"1100.00"}, 1},
		{"several statuses", "?status=WINNING,%20outbid", []string{"1300.00", "1100.00"}, 2},
		{"paged", "?page=2&limit=1", []string{"1100.00"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodGet, "/v1/bids/mine"+tt.query, "alice", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tt.want, amounts(body))
			require.Equal(t, tt.total, body["total"])
		})
	}

	for _, q := range []string{"?status=pending", "?page=x", "?limit=x"} {
		rec, body := s.do(t, http.MethodGet, "/v1/bids/mine"+q, "alice", "")
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		require.Equal(t, "bad_request", body["error"], q)
	}

	rec, _ := s.do(t, http.MethodGet, "/v1/bids/mine", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatus(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(t, http.MethodGet, "/v1/auctions/car-1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "active", body["state"])
	require.EqualValues(t, 3600, body["time_remaining"])
	require.Equal(t, "1000.00", body["current_bid"])
	require.Equal(t, "1100.00", body["next_minimum_bid"])
	require.Equal(t, false, body["ending_soon"])
	require.NotContains(t, body, "winning_bidder_id")

	rec, body = s.do(t, http.MethodGet, "/v1/auctions/nope/status", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "auction_not_found", body["error"])
}

func TestHistory(t *testing.T) {
	s := newServer(t)
	s.do(t, http.MethodPost, "/v1/auctions/car-1/auto-bid", "alice", `{"max_amount": "5000"}`)
	s.clock.Advance(time.Second)
	s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "bob", `{"amount": "1500"}`)

	rec, body := s.do(t, http.MethodGet, "/v1/auctions/car-1/bids?order=asc&limit=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 3, body["total"])
	require.EqualValues(t, 2, body["total_pages"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	require.Equal(t, "alice", first["bidder_id"])
	require.Equal(t, "Alice", first["display_name"])
	require.Equal(t, true, first["is_dealer"])
	require.NotContains(t, first, "max_auto_bid")

	for _, q := range []string{"page=x", "limit=x", "include_retracted=maybe", "order=sideways"} {
		rec, body = s.do(t, http.MethodGet, "/v1/auctions/car-1/bids?"+q, "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		require.Equal(t, "bad_request", body["error"], q)
	}
}

func TestSettleAuctions(t *testing.T) {
	s := newServer(t)
	s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1100"}`)

	post := func(auth string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/v1/cron/settle-auctions", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec, out
	}

	rec, _ := post("")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = post("Bearer wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	s.clock.Advance(2 * time.Hour)
	rec, body := post("Bearer " + cronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["due"])
	settled := body["settled"].([]any)
	require.Len(t, settled, 1)
	got := settled[0].(map[string]any)
	require.Equal(t, "ended_success", got["status"])
	require.Equal(t, "alice", got["winner_id"])
	require.Equal(t, "1100.00", got["amount"])
	require.Empty(t, body["failed"])

	rec, body = post("Bearer " + cronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, body["due"])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/healthz", Health(pinger{tt.err}))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{auction.ErrAuctionNotFound, http.StatusNotFound, "auction_not_found"},
		{auction.ErrAuctionNotActive, http.StatusConflict, "auction_not_active"},
		{auction.ErrAuctionEnded, http.StatusConflict, "auction_ended"},
		{auction.ErrConflict, http.StatusConflict, "conflict"},
		{auction.ErrDuplicateAutoBid, http.StatusConflict, "duplicate_auto_bid"},
		{auction.ErrAutoBidNotFound, http.StatusNotFound, "auto_bid_not_found"},
		{&auction.BidTooLowError{Minimum: decimal.NewFromInt(1300)}, http.StatusBadRequest, "bid_too_low"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, writeError(c, tt.err))
			require.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.wantErr, body["error"])
			if tt.wantCode == http.StatusInternalServerError {
				require.NotContains(t, body["message"], "disk")
			}
		})
	}
}

func TestLiveStream(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/auctions/car-1/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "status", msg.Type)

	require.Eventually(t, func() bool { return s.live.Subscribers("car-1") == 1 }, time.Second, 10*time.Millisecond)
	rec, _ := s.do(t, http.MethodPost, "/v1/auctions/car-1/bids", "alice", `{"amount": "1100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "bid.placed", msg.Type)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/auctions/nope/live", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
