package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"ticket-sales/config"
	"ticket-sales/internal/handlers"
	"ticket-sales/internal/services"
	"ticket-sales/internal/services/gateway"
	"ticket-sales/internal/store"
	"ticket-sales/monitoring"
	"ticket-sales/security"
	"ticket-sales/utils"
)

// driverPocketBase keeps the sales tables inside PocketBase's own database.
const driverPocketBase = "pocketbase"

// components is everything built once the database is available.
type components struct {
	store        *store.Store
	ledger       *services.Ledger
	reservations *services.ReservationService
	fulfillment  *services.FulfillmentService
	payments     *services.PaymentService
	tickets      *services.TicketService
	reaper       *services.Reaper
	admin        *services.AdminService
}

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it the reaper skips its lease and the
	// rate limiter lets everything through.
	var cache redis.Cmdable
	if cfg.RedisURL != "" {
		redisClient, err := utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			slog.Warn("Redis unavailable, continuing without it", "error", err)
		} else {
			defer redisClient.Close()
			cache = redisClient
		}
	}

	// Initialize PubNub
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		notifier = services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig))
	}

	gw, err := gateway.New(gateway.Config{
		Provider:      gateway.Provider(cfg.Gateway.Provider),
		BaseURL:       cfg.Gateway.BaseURL,
		AuthToken:     cfg.Gateway.AuthToken,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	})
	if err != nil {
		return err
	}
	if cfg.Gateway.WebhookSecret == "" {
		slog.Warn("CLIP_WEBHOOK_SECRET is empty, webhook signatures are not checked")
	}

	issuer, err := services.NewTicketIssuer(cfg.QRSecret)
	if err != nil {
		return err
	}

	var c *components
	app.OnBootstrap().BindFunc(func(e *core.BootstrapEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		st, err := openStore(ctx, e.App, cfg)
		if err != nil {
			return err
		}
		c = newComponents(st, cfg, gw, issuer, notifier, cache)
		return nil
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		if c != nil && cfg.DBDriver != driverPocketBase {
			if err := c.store.Close(); err != nil {
				slog.Error("c.store.Close()", "error", err)
			}
		}
		return e.Next()
	})

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "sweep-expired",
		Short: "Expire pending sales whose hold has lapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c == nil {
				return errors.New("sweep-expired: store not initialized")
			}
			n, err := c.reaper.SweepExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d sales\n", n)
			return nil
		},
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if c == nil {
			return errors.New("OnServe: store not initialized")
		}

		registerRoutes(e, cfg, gw, c, cache)

		app.Cron().MustAdd("sweep-expired", cfg.ReaperSchedule, func() {
			c.reaper.RunScheduled(ctx)
		})

		go monitoring.NewMonitor(c.store, 0).Run(ctx)
		if cfg.EnableMetrics {
			go serveMetrics(ctx, cfg.MetricsPort)
		}

		slog.Info("Server routes registered", "gateway", gw.Provider(), "store", c.store.Dialect())

		return e.Next()
	})

	// Start server
	return app.Start()
}

// openStore binds the store to PocketBase's database or opens a separate
// one, depending on DB_DRIVER.
func openStore(ctx context.Context, app core.App, cfg *config.Config) (*store.Store, error) {
	if cfg.DBDriver == driverPocketBase {
		conn, ok := app.NonconcurrentDB().(*dbx.DB)
		if !ok {
			return nil, errors.New("openStore: unexpected pocketbase db type")
		}
		st := store.New(conn, store.DialectSQLite)
		// The migration also runs on serve, this covers one-off commands.
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		return st, nil
	}

	st, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newComponents(st *store.Store, cfg *config.Config, gw gateway.Gateway, issuer *services.TicketIssuer, notifier services.Notifier, cache redis.Cmdable) *components {
	fulfillment := services.NewFulfillmentService(st, issuer, notifier)

	return &components{
		store:  st,
		ledger: services.NewLedger(st),
		reservations: services.NewReservationService(st, services.ReservationConfig{
			HoldWindow: cfg.HoldWindow,
			TaxRate:    cfg.TaxRate,
			Currency:   cfg.Currency,
		}, notifier),
		fulfillment: fulfillment,
		payments: services.NewPaymentService(st, gw, fulfillment, services.PaymentConfig{
			AppBaseURL: cfg.AppBaseURL,
		}),
		tickets: services.NewTicketService(st, issuer),
		reaper:  services.NewReaper(st, cache),
		admin:   services.NewAdminService(st),
	}
}

func registerRoutes(e *core.ServeEvent, cfg *config.Config, gw gateway.Gateway, c *components, cache redis.Cmdable) {
	limiter := security.NewRateLimiter(cache, cfg.RateLimitPerMinute, time.Minute)

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(c.reservations, c.ledger)
	paymentHandler := handlers.NewPaymentHandler(c.payments, c.fulfillment, cfg.Gateway.WebhookSecret)
	ticketHandler := handlers.NewTicketHandler(c.tickets)
	adminHandler := handlers.NewAdminHandler(c.reaper, c.tickets, c.ledger, c.payments, c.admin)

	// Checkout endpoints
	e.Router.POST("/api/v1/checkout", checkoutHandler.Checkout).BindFunc(limiter.Limit("checkout"))
	e.Router.GET("/api/v1/events/{eventId}/availability", checkoutHandler.EventAvailability)

	// Payment endpoints
	e.Router.GET("/api/v1/sales/{saleId}", paymentHandler.GetSale)
	e.Router.POST("/api/v1/payments/charge", paymentHandler.Charge).BindFunc(limiter.Limit("charge"))
	e.Router.POST("/api/v1/payments/link", paymentHandler.CreateLink).BindFunc(limiter.Limit("link"))
	e.Router.POST("/api/v1/webhooks/"+string(gw.Provider()), paymentHandler.Webhook)

	// Ticket endpoints
	e.Router.GET("/api/v1/tickets/{ticketId}/qr.png", ticketHandler.QRCode)

	// Admin endpoints
	admin := e.Router.Group("/api/v1/admin")
	admin.Bind(apis.RequireSuperuserAuth())
	admin.GET("/sales/sweep-expired", adminHandler.CountExpired)
	admin.POST("/sales/sweep-expired", adminHandler.SweepExpired)
	admin.POST("/sales/{saleId}/reconcile", adminHandler.Reconcile)
	admin.POST("/tickets/visibility", adminHandler.SetTicketVisibility)
	admin.PATCH("/tickets/visibility", adminHandler.SetSaleVisibility)
	admin.GET("/ticket-types/{ticketTypeId}/availability", adminHandler.Availability)
	admin.POST("/tickets/verify", adminHandler.VerifyTicket)
	admin.POST("/events", adminHandler.CreateEvent)
	admin.GET("/orders", adminHandler.ListOrders)
	admin.GET("/dashboard", adminHandler.Dashboard)

	// Test endpoint for payment simulation
	if cfg.IsDevelopment() {
		e.Router.POST("/api/v1/test/simulate-payment", paymentHandler.SimulatePayment)
	}

	// Health check
	e.Router.GET("/health", func(e *core.RequestEvent) error {
		ctx := e.Request.Context()
		if err := c.store.Ping(ctx); err != nil {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		if cache != nil {
			if err := utils.RedisHealthCheck(ctx, cache); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
		}
		return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
}

// serveMetrics exposes the prometheus registry on its own port until ctx is done.
func serveMetrics(ctx context.Context, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("srv.ListenAndServe()", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	cancel()
}
