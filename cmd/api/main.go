package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	store, err := newCartStore(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}

	catalog := newCatalog(cfg.Coupon, pool, logger)
	if err := seedCatalog(ctx, cfg, catalog, logger); err != nil {
		return err
	}

	ledger, err := newLedger(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		return err
	}

	sweeper := coupon.NewSweeper(catalog, ledger, logger)
	go sweeper.Run(ctx, cfg.Coupon.SweepInterval)

	productService := service.NewProductService(productRepo, logger)
	cartService := service.NewCartService(productService, store, logger)
	couponService := service.NewCouponService(catalog, ledger, orderRepo, publisher, logger)
	orderService := service.NewOrderService(orderRepo, cartService, couponService, ledger, publisher, logger)

	mux := router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Carts:    handler.NewCartHandler(cartService, logger),
		Coupons:  handler.NewCouponHandler(couponService, cartService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
	}, router.Options{
		APIKey:    cfg.Auth.APIKey,
		JWTSecret: cfg.Auth.JWTSecret,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Stop the sweeper before draining requests.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newCartStore keeps carts in Redis when an address is configured, in process memory otherwise.
func newCartStore(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (cart.SnapshotStore, error) {
	if cfg.Addr == "" {
		logger.Info().Msg("using in-memory cart store (REDIS_ADDR not set)")
		return cart.NewMemoryStore(), nil
	}
	client, err := database.NewRedisClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cart store: %w", err)
	}
	return cart.NewRedisStore(client, cfg.CartTTL, logger), nil
}

func newCatalog(cfg config.CouponConfig, pool *pgxpool.Pool, logger zerolog.Logger) coupon.Store {
	if cfg.CatalogBackend == config.BackendMemory {
		return coupon.NewMemoryCatalog(1024)
	}
	return repository.NewCouponRepository(pool, logger)
}

// seedCatalog loads the configured coupon files, from S3 with a local
// fallback when S3 is enabled.
func seedCatalog(ctx context.Context, cfg *config.Config, catalog coupon.Store, logger zerolog.Logger) error {
	fileLoader := coupon.NewFileLoader(logger)
	var loader coupon.Loader = fileLoader

	if cfg.S3.Enabled {
		s3Loader, err := coupon.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			loader = coupon.NewFallbackLoader(s3Loader, fileLoader, logger)
		}
	} else {
		logger.Info().Msg("using local file system for coupon files (S3 disabled)")
	}

	n, err := coupon.Seed(ctx, catalog, loader, cfg.Coupon.CatalogFiles, logger)
	if err != nil {
		return fmt.Errorf("failed to seed coupon catalog: %w", err)
	}
	logger.Info().Int("coupons", n).Str("backend", cfg.Coupon.CatalogBackend).Msg("coupon catalog seeded")
	return nil
}

func newLedger(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (coupon.UsageLedger, error) {
	switch cfg.Coupon.LedgerBackend {
	case config.BackendMemory:
		return coupon.NewMemoryLedger(logger), nil
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		return repository.NewDynamoUsageRepository(client, cfg.DynamoDB.Table, logger), nil
	case config.BackendPostgres:
		return repository.NewUsageRepository(pool, logger), nil
	}
	return nil, errors.New("unknown coupon ledger backend: " + cfg.Coupon.LedgerBackend)
}

func newPublisher(ctx context.Context, cfg config.EventsConfig, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.QueueURL == "" {
		return events.NopPublisher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	logger.Info().Str("queue_url", cfg.QueueURL).Msg("publishing coupon usage events")
	return events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.QueueURL, logger), nil
}
