package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/discount"
	"github.com/example/storefront/internal/domain/offer"
	"github.com/example/storefront/internal/domain/pricing"
	"github.com/example/storefront/internal/infrastructure/cache"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/outbox"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	log := config.NewLogger()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters long")
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()
	log.Info("connected to postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	// Repositories
	offerRepo := store.NewOfferRepository(db)
	inventoryRepo := store.NewInventoryRepository(db)
	cartRepo := store.NewCartRepository(db)
	discountRepo := store.NewDiscountRepository(db)
	orderRepo := store.NewOrderRepository(db)
	outboxRepo := store.NewOutboxRepository(db)
	userRepo := store.NewUserRepository(db)
	productRepo := store.NewProductRepository(db)

	// Domain services
	pricingCfg := pricing.Config{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
		TaxRate:               cfg.TaxRate,
	}
	offerCache := cache.NewOfferCache(redisClient, cfg.OfferCacheTTL, log)
	offerSvc := offer.NewService(offerRepo, inventoryRepo, offerCache, cfg.LowStockThreshold, log)
	discountEval := discount.NewEvaluator(discountRepo)
	cartStore := cart.NewStore(cartRepo, offerSvc, log)
	reconciler := cart.NewReconciler(offerSvc, discountEval, pricingCfg, log)
	merger := cart.NewMerger(cartRepo, offerSvc, log)
	orchestrator := checkout.NewOrchestrator(cartRepo, offerSvc, discountEval, pricingCfg, orderRepo, log)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry)
	authService := auth.NewService(userRepo, jwtService, log)

	// Outbox dispatcher relays committed order events to Kafka.
	dispatcher := outbox.NewDispatcher(outboxRepo, producer, log)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	handlers := api.NewHandlers(cartStore, reconciler, merger, discountEval, orchestrator, orderRepo, productRepo, offerSvc, log)
	authHandlers := api.NewAuthHandlers(authService, log)
	router := api.NewRouter(handlers, authHandlers, jwtService, log)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server started")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	wg.Wait()
}
