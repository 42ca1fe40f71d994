package main

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"examflow/internal/audit"
	"examflow/internal/audit/relay"
	auditmemory "examflow/internal/audit/store/memory"
	auditpostgres "examflow/internal/audit/store/postgres"
	"examflow/internal/directory"
	httpapi "examflow/internal/http"
	jwttoken "examflow/internal/jwt_token"
	"examflow/internal/platform/config"
	"examflow/internal/platform/httpserver"
	"examflow/internal/platform/logger"
	"examflow/internal/platform/metrics"
	"examflow/internal/platform/postgres"
	redisplatform "examflow/internal/platform/redis"
	"examflow/internal/submission/handler"
	submissionmetrics "examflow/internal/submission/metrics"
	"examflow/internal/submission/service"
	submissionstore "examflow/internal/submission/store"
	"examflow/internal/validation"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set; using the development signing key")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	if err := seedDirectory(ctx, cfg.DirectorySeedFile, b.seed); err != nil {
		return err
	}
	dir, err := withDirectoryCache(ctx, cfg, log, b)
	if err != nil {
		return err
	}

	publisherOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(audit.NewMetrics(reg)),
	}

	// The relay outlives the HTTP server so entries committed by in-flight
	// requests are still flushed during shutdown.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	var g errgroup.Group

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := relay.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer sink.Close()
		b.checks["kafka"] = sink.Ping

		auditRelay := relay.New(sink, relay.WithBuffer(cfg.Kafka.RelayBuffer), relay.WithLogger(log))
		publisherOpts = append(publisherOpts, audit.WithRelay(auditRelay))
		g.Go(func() error {
			if err := auditRelay.Run(relayCtx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit relay enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AuditTopic)
	}

	svc := service.New(b.store, audit.NewPublisher(b.audit, publisherOpts...), dir,
		service.WithLogger(log),
		service.WithMetrics(submissionmetrics.New(reg)),
		service.WithValidator(validation.NewRequiredFields(nil)),
		service.WithTxRunner(b.tx),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:      log,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		Validator:   jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)),
		Submissions: handler.New(svc, log),
		Checks:      b.checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting examflow", "addr", cfg.Addr, "storage", b.kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stopRelay()
		_ = g.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	stopRelay()
	return g.Wait()
}

// backends are the storage collaborators for one storage kind.
type backends struct {
	kind    string
	store   service.Store
	audit   audit.Store
	dir     directory.Directory
	seed    func(context.Context, directory.User) error
	tx      service.TxRunner
	checks  map[string]httpapi.Check
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends uses Postgres when DATABASE_URL is set and in-memory stores otherwise.
func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (*backends, error) {
	b := &backends{checks: map[string]httpapi.Check{}}

	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		mem := directory.NewInMemory()
		b.kind = "memory"
		b.store = submissionstore.NewInMemory()
		b.audit = auditmemory.NewInMemoryStore()
		b.dir = mem
		b.seed = func(_ context.Context, u directory.User) error {
			mem.Add(u)
			return nil
		}
		b.tx = service.NewShardedTx(cfg.TxTimeout)
		return b, nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, pool.Close)
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		b.close()
		return nil, err
	}

	pgDir := directory.NewPostgres(pool)
	b.kind = "postgres"
	b.store = submissionstore.NewPostgres(pool)
	b.audit = auditpostgres.New(pool)
	b.dir = pgDir
	b.seed = pgDir.Upsert
	b.tx = newWorkflowPostgresTx(pool, cfg.TxTimeout)
	b.checks["postgres"] = pool.Ping
	return b, nil
}

// withDirectoryCache fronts the directory with Redis when REDIS_URL is set.
func withDirectoryCache(ctx context.Context, cfg config.Server, log *slog.Logger, b *backends) (directory.Directory, error) {
	client, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return b.dir, nil
	}
	b.closers = append(b.closers, func() { _ = client.Close() })
	b.checks["redis"] = client.Health
	log.Info("directory cache enabled", "ttl", cfg.DirectoryCacheTTL)
	return directory.NewCached(b.dir, client.Client, cfg.DirectoryCacheTTL, directory.WithCacheLogger(log)), nil
}

func seedDirectory(ctx context.Context, path string, seed func(context.Context, directory.User) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open directory seed: %w", err)
	}
	defer f.Close()

	users, err := directory.LoadSeed(f)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := seed(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}
