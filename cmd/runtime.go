package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"profile-store/core/config"
	"profile-store/core/database"
	"profile-store/core/docstore"
	"profile-store/core/health"
	"profile-store/core/logger"
	"profile-store/core/metrics"
	"profile-store/core/replication"
	"profile-store/core/storage"
	"profile-store/core/store"
	"profile-store/core/store/document"
	"profile-store/core/store/hierarchical"
	"profile-store/core/store/relational"
	profilesync "profile-store/feature/database/sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime is the wired replication stack shared by every command.
type runtime struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	monitor  *health.Monitor
	store    *replication.Store
	sync     *profilesync.Service
	closers  []func(context.Context) error
	logger   *zap.Logger
}

// bootstrap configures every store and wires the replication stack. A store
// that is down at startup is still registered; the monitor marks it
// unavailable until it answers. The call fails only when no store can be
// configured at all.
func bootstrap(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*runtime, error) {
	rt := &runtime{registry: prometheus.NewRegistry(), logger: logg}
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.New(rt.registry)

	var adapters []store.Adapter

	// 1. Relational store
	var db *gorm.DB
	relUp := false
	if conn, err := database.Open(cfg.Database); err != nil {
		logg.Warn("Relational store is misconfigured", zap.Error(err))
	} else {
		db = conn
		rel := relational.New(db, cfg.Database.Table, logg.Named("relational"))
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := rel.Ping(pctx)
		cancel()
		if err != nil {
			rel.MigrateOnPing()
			logg.Warn("Relational store unreachable, it joins once it answers", zap.Error(err))
		} else {
			relUp = true
			if err := rel.Migrate(ctx); err != nil {
				logg.Warn("Relational migration failed, writes may drop to core fields", zap.Error(err))
			}
			if missing, err := rel.MissingColumns(ctx); err == nil && len(missing) > 0 {
				logg.Warn("Relational table is missing profile columns", zap.Strings("columns", missing))
			}
			logg.Info("Connected to relational store", zap.String("driver", cfg.Database.Driver))
		}
		adapters = append(adapters, rel)
		rt.closers = append(rt.closers, rel.Close)
	}

	// 2. Document store
	docs := docstore.NewReconnecting(cfg.Docstore, docstore.Connect)
	doc := document.New(docs, cfg.Docstore.Table, logg.Named("document"))
	if err := doc.Ping(ctx); err != nil {
		logg.Warn("Document store unreachable, it joins once it answers", zap.Error(err))
	} else {
		logg.Info("Connected to document store", zap.String("url", cfg.Docstore.URL))
	}
	adapters = append(adapters, doc)
	rt.closers = append(rt.closers, doc.Close)

	// 3. Hierarchical store
	if client, err := storage.NewClient(cfg.Storage); err != nil {
		logg.Warn("Hierarchical store client failed", zap.Error(err))
	} else {
		bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := storage.EnsureBucket(bctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
		cancel()
		if err != nil {
			// The monitor keeps probing; the store joins once the bucket is reachable.
			logg.Warn("Hierarchical bucket check failed", zap.Error(err))
		}
		adapters = append(adapters, hierarchical.New(client, cfg.Storage.Bucket, cfg.Storage.Prefix, logg.Named("hierarchical")))
		logg.Info("Configured hierarchical store", zap.String("bucket", cfg.Storage.Bucket))
	}

	if len(adapters) == 0 {
		return nil, errors.New("no profile store could be configured")
	}

	rt.monitor = health.NewMonitor(adapters, cfg.Replication.HealthConfig(), logg.Named("health"), rt.metrics)
	rt.store = replication.New(rt.monitor, cfg.Replication, logg.Named("replication"), rt.metrics)

	journal := profilesync.NewJournal(db, cfg.Database.SyncLogTable, docs, cfg.Docstore.SyncLogTable, logg.Named("synclog"), rt.metrics)
	if relUp {
		if err := journal.Migrate(ctx); err != nil {
			logg.Warn("Sync log migration failed", zap.Error(err))
		}
	}
	rt.sync = profilesync.NewService(rt.store, journal, cfg.Sync, logg.Named("sync"))
	return rt, nil
}

// Close stops background repairs and releases every store connection.
func (rt *runtime) Close(ctx context.Context) {
	rt.store.Close()
	for _, c := range rt.closers {
		if err := c(ctx); err != nil {
			rt.logger.Warn("Failed to close store", zap.Error(err))
		}
	}
}

// loadRuntime loads config, logger and the replication stack for one-shot
// commands. The first probe runs before it returns.
func loadRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	rt, err := bootstrap(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	rt.monitor.ProbeAll(ctx)
	return rt, nil
}
