package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/sync/errgroup"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/config"
	"auctionhouse/internal/economy"
	"auctionhouse/internal/http/handlers"
	applog "auctionhouse/internal/log"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/repos"
	"auctionhouse/internal/services"
)

// claimDeliverer hands items back through the claim response; the game
// server puts them into the inventory.
type claimDeliverer struct{}

func (claimDeliverer) GiveItem(_ context.Context, playerID string, blob []byte) error {
	applog.Audit(nil, "item.delivered", map[string]any{"player_id": playerID, "bytes": len(blob)})
	return nil
}

func main() {
	cfg := config.Load()

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
			log.SetOutput(out)
		}
	}
	applog.Init(out, cfg.LogLevel)

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	clk := clock.NewSystem()
	notifier, closers := notifiers(cfg)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	ah := services.NewAuctionHouse(services.Deps{
		Repos: services.Repositories{
			Tx:           repos.NewStore(db),
			Listings:     repos.NewListingRepo(db),
			Bids:         repos.NewBidRepo(db),
			Escrow:       repos.NewEscrowRepo(db),
			Collection:   repos.NewCollectionRepo(db),
			Prices:       repos.NewPriceHistoryRepo(db),
			Transactions: repos.NewTransactionRepo(db),
		},
		Economy:     economy.NewLedger(repos.NewAccountRepo(db), clk, cfg.StartingBalance),
		Notifier:    notifier,
		Items:       claimDeliverer{},
		Permissions: cfg.Permissions(),
		Clock:       clk,
		Settings:    cfg.Engine(),
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: true,
		// Handler strings reach the engine, which keeps them past the request.
		Immutable: true,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: out}))
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Every player comes through the same game server.
			if id := c.Get("X-Player-ID"); id != "" {
				return id
			}
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool { return c.Path() == "/healthz" },
	}))

	handlers.Register(app, handlers.NewDeps(ah, cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		applog.Info(nil, "server.start", map[string]any{"port": cfg.Port})
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		return ah.Sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		applog.Error(nil, "server.exit", err, nil)
		os.Exit(1)
	}
	applog.Info(nil, "server.stop", nil)
}

// notifiers builds the configured notification backends. Backends that cannot
// connect are skipped with a warning.
func notifiers(cfg config.Config) (services.Notifier, []io.Closer) {
	var (
		multi   notify.Multi
		closers []io.Closer
	)
	for _, name := range cfg.NotifyBackends {
		switch name {
		case "log":
			multi = append(multi, notify.Log{})
		case "nats":
			n, err := notify.NewNATS(cfg.NATSURL, "")
			if err != nil {
				applog.Warn(nil, "notify.nats.unavailable", err, map[string]any{"url": cfg.NATSURL})
				continue
			}
			multi = append(multi, n)
			closers = append(closers, n)
		case "redis":
			r, err := notify.NewRedis(cfg.RedisAddr, "", 0, "")
			if err != nil {
				applog.Warn(nil, "notify.redis.unavailable", err, map[string]any{"addr": cfg.RedisAddr})
				continue
			}
			multi = append(multi, r)
			closers = append(closers, r)
		default:
			applog.Warn(nil, "notify.unknown_backend", nil, map[string]any{"backend": name})
		}
	}
	if len(multi) == 0 {
		return notify.Discard{}, closers
	}
	return multi, closers
}
