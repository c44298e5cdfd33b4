package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtroode/kurisync/internal/config"
	natsevents "github.com/dtroode/kurisync/internal/events/nats"
	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/metrics"
	"github.com/dtroode/kurisync/internal/model"
	"github.com/dtroode/kurisync/internal/remote"
	"github.com/dtroode/kurisync/internal/repository/orm"
	"github.com/dtroode/kurisync/internal/repository/postgres"
	"github.com/dtroode/kurisync/internal/service"
	"github.com/dtroode/kurisync/internal/source/ethereum"
	"github.com/dtroode/kurisync/internal/source/sheets"
	"github.com/dtroode/kurisync/internal/storage/minio"
)

// stores groups the three repositories of the configured backend.
type stores struct {
	users    model.UserStore
	ledgers  model.LedgerStore
	statuses model.StatusStore
	ping     func(ctx context.Context) error
	close    func() error
}

func (s *stores) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func openStores(ctx context.Context, cfg config.Database) (*stores, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := orm.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    orm.NewUserRepository(db),
			ledgers:  orm.NewLedgerRepository(db),
			statuses: orm.NewStatusRepository(db),
			ping:     db.Ping,
			close:    db.Close,
		}, nil
	default:
		conn, err := postgres.NewConnection(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    postgres.NewUserRepository(conn),
			ledgers:  postgres.NewLedgerRepository(conn),
			statuses: postgres.NewStatusRepository(conn),
			ping:     conn.Ping,
			close:    conn.Close,
		}, nil
	}
}

func remoteConfig(cfg config.Remote) remote.Config {
	return remote.Config{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		Jitter:      cfg.Jitter,
		MinSpacing:  cfg.MinSpacing,
		RateLimit:   cfg.RateLimit,
		Burst:       cfg.Burst,
	}
}

// app is the fully wired service shared by the serve and sync commands.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	stores  *stores
	sync    *service.Sync
	query   *service.Query

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.stores, err = openStores(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.closers = append(a.closers, a.stores.close)

	rpc, err := ethereum.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { rpc.Close(); return nil })

	chainCaller := remote.New(remoteConfig(cfg.Remote), ethereum.Classify, log.With("source", "ethereum"), remote.WithMetrics(a.metrics))
	ledger, err := ethereum.NewLedger(rpc, chainCaller, cfg.Ethereum.CallTimeout)
	if err != nil {
		return nil, err
	}

	sheetsSvc, err := sheets.NewService(ctx, cfg.Sheets.CredentialsFile)
	if err != nil {
		return nil, err
	}
	sheetsCaller := remote.New(remoteConfig(cfg.Remote), sheets.Classify, log.With("source", "sheets"), remote.WithMetrics(a.metrics))
	registry := sheets.NewRegistry(sheetsSvc, sheetsCaller, sheets.Config{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		UsersRange:    cfg.Sheets.UsersRange,
		LedgersRange:  cfg.Sheets.LedgersRange,
	})

	opts := []service.SyncOption{service.WithSyncMetrics(a.metrics), service.WithLifetime(ctx)}

	var archive *service.Archive
	if cfg.Storage.Endpoint != "" {
		client, err := minio.Connect(ctx, minio.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot archive: %w", err)
		}
		archive = service.NewArchive(client, log)
		opts = append(opts, service.WithArchive(archive))
	}

	if cfg.NATS.URL != "" {
		publisher, err := natsevents.Connect(cfg.NATS.URL, "kurisync", cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, publisher.Close)
		opts = append(opts, service.WithEvents(publisher))
	}

	a.sync = service.NewSync(registry, ledger, a.stores.users, a.stores.ledgers, a.stores.statuses,
		service.SyncConfig{
			Concurrency: cfg.Sync.Concurrency,
			Store: service.StoreRetry{
				Attempts: cfg.Database.StoreRetries,
				Backoff:  cfg.Database.RetryBackoff,
			},
		}, log, opts...)
	a.query = service.NewQuery(registry, a.stores.users, a.stores.ledgers, a.stores.statuses, a.sync, archive, log)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
