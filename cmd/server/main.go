package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/vehicle-auction-engine/internal/auction"
	"github.com/iliyamo/vehicle-auction-engine/internal/config" // Internal config loader
	"github.com/iliyamo/vehicle-auction-engine/internal/database"
	"github.com/iliyamo/vehicle-auction-engine/internal/handler"
	"github.com/iliyamo/vehicle-auction-engine/internal/live"
	"github.com/iliyamo/vehicle-auction-engine/internal/middleware"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
	"github.com/iliyamo/vehicle-auction-engine/internal/router" // Internal router setup
	"github.com/iliyamo/vehicle-auction-engine/internal/service"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	utils.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, profiles, closeStore := openStore(ctx, cfg)
	defer closeStore()

	broadcaster := live.NewBroadcaster()
	amqpPub := service.NewPublisher(cfg.AMQPURL)
	defer func() { _ = amqpPub.Close() }()
	engine := auction.New(cfg.Auction, auction.Deps{
		Store:      store,
		Profiles:   profiles,
		Publishers: []auction.Publisher{broadcaster, amqpPub},
	})

	if cfg.NotifyConsumer {
		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.AMQPURL); err != nil && !errors.Is(err, context.Canceled) {
				utils.Error("notification consumer stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	rdb := config.NewRedisClient(cfg.Redis) // nil when Redis is unreachable
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestLogger())
	router.Register(e, router.Deps{
		Auctions:  handler.NewAuctionHandler(engine),
		Live:      handler.NewLiveHandler(engine, broadcaster),
		Cron:      &handler.CronHandler{Engine: engine, Secret: cfg.CronSecret},
		Health:    handler.Health(store),
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		utils.Info("listening", map[string]any{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("server failed", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		utils.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
	utils.Info("stopped", nil)
}

// openStore builds the configured store.  The returned func releases it.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, repository.ProfileReader, func()) {
	if cfg.StoreDriver == config.StoreMemory {
		mem := repository.NewMemoryStore()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				utils.Fatal("open seed file", map[string]any{"path": cfg.SeedFile, "error": err.Error()})
			}
			n, err := repository.LoadSeed(mem, f, cfg.Auction.DefaultMaxExtensions, time.Now().UTC())
			_ = f.Close()
			if err != nil {
				utils.Fatal("load seed file", map[string]any{"path": cfg.SeedFile, "error": err.Error()})
			}
			utils.Info("memory store seeded", map[string]any{"auctions": n})
		}
		return mem, mem, func() {}
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		utils.Fatal("database connection failed", map[string]any{"error": err.Error()})
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			utils.Fatal("database migration failed", map[string]any{"error": err.Error()})
		}
	}
	return repository.NewMySQLStore(db), repository.NewProfileRepo(db), func() { _ = db.Close() }
}
