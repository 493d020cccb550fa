package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/cryptoticketing/ticketd/internal/blob/s3"
	"github.com/cryptoticketing/ticketd/internal/cache/redis"
	"github.com/cryptoticketing/ticketd/internal/catalog"
	"github.com/cryptoticketing/ticketd/internal/chain"
	"github.com/cryptoticketing/ticketd/internal/config"
	"github.com/cryptoticketing/ticketd/internal/crypto"
	"github.com/cryptoticketing/ticketd/internal/domain"
	"github.com/cryptoticketing/ticketd/internal/ledger/postgres"
	"github.com/cryptoticketing/ticketd/internal/notify"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Ledger stores
	Rights    domain.ClaimRightStore
	Listings  domain.ListingStore
	Transfers domain.TransferStore
	SoldKeys  domain.SoldKeyStore
	Receipts  domain.ReceiptStore
	Events    domain.EventStore

	// Caches and signals
	Snapshots domain.SnapshotCache
	Sales     domain.SaleCache
	Views     domain.ViewCache
	Limiter   domain.RateLimiter
	Locks     domain.LockManager
	Bus       domain.SignalBus

	// Chain
	Contract domain.SaleContract

	// Cold storage; nil when archiving is disabled.
	Archiver domain.LedgerArchiver

	// External services
	Catalog  *catalog.Client
	Notifier *notify.Notifier

	// Connectivity handles, kept for health probes.
	PG    *postgres.Client
	Redis *redis.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ledger ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PG = pgClient
	deps.Rights = postgres.NewClaimRightStore(pool)
	deps.Listings = postgres.NewListingStore(pool)
	deps.Transfers = postgres.NewTransferStore(pool)
	deps.SoldKeys = postgres.NewSoldKeyStore(pool)
	deps.Receipts = postgres.NewReceiptStore(pool)
	deps.Events = postgres.NewEventStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.Snapshots = redis.NewSnapshotCache(redisClient)
	deps.Sales = redis.NewSaleCache(redisClient)
	deps.Views = redis.NewViewCache(redisClient)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- Chain adapter ---
	key, err := crypto.ResolveKey(crypto.KeySource{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		KeystorePath:     cfg.Wallet.EncryptedKeyPath,
		KeystorePassword: cfg.Wallet.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
	}
	adapter, err := chain.NewAdapter(ctx, cfg.Chain.RPCURL, cfg.Chain.ContractAddress, key, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, func() { _ = adapter.Close() })
	deps.Contract = adapter

	// --- S3 archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
	}

	// --- Event catalog ---
	deps.Catalog = catalog.NewClient(cfg.Catalog.BaseURL)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
