package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agromart/auth"
	"agromart/cart"
	"agromart/config"
	"agromart/crops"
	"agromart/db"
	"agromart/filemgr"
	"agromart/livefeed"
	"agromart/logging"
	"agromart/metrics"
	"agromart/middleware"
	"agromart/mq"
	"agromart/orders"
	"agromart/pay"
	"agromart/ratelim"
	"agromart/rdx"
	"agromart/routes"
	"agromart/surplus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const cropCacheTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New("agromart", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := db.Connect(startCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	if err := store.EnsureIndexes(startCtx); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}

	conn, err := rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var images filemgr.ImageStore = filemgr.NewLocalStore(cfg.UploadDir)
	if cfg.CloudinaryURL != "" {
		cs, err := filemgr.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			logger.Fatal("cloudinary", zap.Error(err))
		}
		images = cs
	}

	var gateway pay.Gateway = pay.Disabled{}
	if cfg.StripeSecretKey != "" {
		gateway = pay.NewStripe(cfg.StripeSecretKey, cfg.GatewayTimeout)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; card payments are disabled")
	}

	tokens := middleware.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	cropSvc := crops.NewService(db.NewCropRepo(store), rdx.NewCropCache(conn, cropCacheTTL), images)
	orderSvc := orders.NewService(orders.Deps{
		Carts:          db.NewCartRepo(store),
		Catalog:        cropSvc,
		Repo:           db.NewOrderRepo(store),
		Gateway:        gateway,
		Locker:         rdx.NewLocker(conn),
		Events:         mq.NewPublisher(conn),
		Reconciliation: db.NewReconciliationRepo(store),
		Metrics:        m,
	}, orders.Config{
		Currency:       cfg.Currency,
		GatewayTimeout: cfg.GatewayTimeout,
		LockTTL:        cfg.CheckoutLockTTL,
		ReceiptSecret:  cfg.ReceiptSecret,
	})

	hub := livefeed.NewHub()
	go hub.Run()
	go mq.Subscribe(ctx, conn, logger, hub.Deliver)

	authLimiter := ratelim.NewRateLimiter(20, 10, 10*time.Minute)
	orderLimiter := ratelim.NewRateLimiter(30, 10, 10*time.Minute)
	go sweep(ctx, authLimiter, orderLimiter)

	router := routes.New(routes.Deps{
		Tokens:       tokens,
		Metrics:      m,
		AuthLimiter:  authLimiter,
		OrderLimiter: orderLimiter,
		Idempotency:  db.NewIdempotencyRepo(store),
		Hub:          hub,
		WSOrigins:    cfg.CORSOrigins,
		UploadDir:    cfg.UploadDir,
		Health: func(ctx context.Context) error {
			if err := store.Client.Ping(ctx, readpref.Primary()); err != nil {
				return err
			}
			return conn.Ping(ctx).Err()
		},
		Auth:    auth.NewHandlers(auth.NewService(db.NewUserRepo(store), tokens, cfg.IsAdminEmail)),
		Crops:   crops.NewHandlers(cropSvc),
		Cart:    cart.NewHandlers(cart.NewService(db.NewCartRepo(store), cropSvc)),
		Orders:  orders.NewHandlers(orderSvc),
		Surplus: surplus.NewHandlers(surplus.NewService(db.NewSurplusRepo(store))),
	})

	// CORS → security headers → request logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler(router)
	handler := middleware.RequestLogger(logger)(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GatewayTimeout + 20*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	server.RegisterOnShutdown(hub.Stop)

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		logger.Warn("redis close", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("mongo close", zap.Error(err))
	}
	logger.Info("server stopped")
}

// sweep drops idle rate-limit buckets once a minute.
func sweep(ctx context.Context, limiters ...*ratelim.RateLimiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, rl := range limiters {
				rl.Sweep()
			}
		}
	}
}
