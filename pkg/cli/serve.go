package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/portal/pkg/async"
	"github.com/platinummonkey/portal/pkg/audit"
	"github.com/platinummonkey/portal/pkg/config"
	"github.com/platinummonkey/portal/pkg/httputil"
	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/middleware"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/portal"
	"github.com/platinummonkey/portal/pkg/session"
	"github.com/platinummonkey/portal/pkg/tokenstore"
	"github.com/platinummonkey/portal/pkg/users"
)

func newServeCommand(app *App) *Command {
	cmd := &Command{
		Name:        "serve",
		Description: "Run the portal web server",
		Flags:       newFlagSet(app, "serve"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}

		level := cfg.Observability.LogLevel
		if app.Verbose {
			level = observability.DebugLevel
		}
		return serve(ctx, cfg, observability.NewLogger(level, app.Err))
	}

	return cmd
}

// serve runs the portal and its ops listener until ctx is cancelled or a
// signal arrives. The session bootstraps in the background; protected pages
// answer with the loading placeholder until it is done.
func serve(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, err := tokenstore.Open(cfg.TokenStore)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer store.Close()

	client := identity.NewClient(cfg.Identity.BaseURL,
		identity.WithHTTPClient(identity.NewHTTPClient(cfg.Identity.Timeout, nil)),
		identity.WithLogger(logger),
	)
	mgr := session.NewManager(client, store,
		session.WithLogger(logger),
		session.WithMetrics(metrics),
	)

	transport := identity.NewAuthTransport(mgr, nil,
		identity.WithTransportLogger(logger),
		identity.WithTransportMetrics(metrics),
	)
	directory := identity.NewClient(cfg.Identity.BaseURL,
		identity.WithHTTPClient(identity.NewHTTPClient(cfg.Identity.Timeout, transport)),
		identity.WithLogger(logger),
	)
	userService := users.NewService(directory, cfg.Portal.UserCache,
		users.WithLogger(logger),
		users.WithMetrics(metrics),
	)

	catalog, err := portal.LoadCatalog(cfg.Portal.CatalogPath)
	if err != nil {
		return err
	}
	opts := []portal.Option{portal.WithCatalog(catalog), portal.WithLogger(logger)}
	if dir := cfg.Portal.AuditDir; dir != "" {
		auditLog, err := audit.NewFileLogger(audit.DefaultFileLoggerConfig(dir))
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditLog.Close()
		opts = append(opts, portal.WithAuditLogger(auditLog))
	}
	if limit := cfg.Portal.LoginRateLimit; limit.RequestsPerWindow > 0 {
		limiter := middleware.NewRateLimiter(limit)
		limiter.StartCleanup(ctx)
		opts = append(opts, portal.WithLoginLimiter(limiter))
	}
	proxies, err := httputil.ParseTrustedProxies(cfg.Portal.TrustedProxies)
	if err != nil {
		return err
	}
	opts = append(opts, portal.WithTrustedProxies(proxies))
	if metrics != nil {
		opts = append(opts, portal.WithMetrics(metrics))
	}
	site, err := portal.NewServer(mgr, userService, opts...)
	if err != nil {
		return fmt.Errorf("failed to create portal server: %w", err)
	}

	checker := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion)
	checker.AddCheck("token_store", true, store.Ping)
	checker.AddCheck("identity_service", false, client.Ping)

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, checker)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}

	portalServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      site.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      opsMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(portalServer, logger.WithField("listener", "portal")) })
	g.Go(func() error { return listen(opsServer, logger.WithField("listener", "ops")) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(portalServer.Shutdown(shutdownCtx), opsServer.Shutdown(shutdownCtx))
	})
	g.Go(func() error { return runSessionWorkers(gctx, cfg, mgr, store) })

	return g.Wait()
}

func listen(srv *http.Server, logger *observability.Logger) error {
	logger.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}

// runSessionWorkers bootstraps the session, then keeps it current: cron
// revalidates the access token and token file changes made by other processes
// are synced in.
func runSessionWorkers(ctx context.Context, cfg *config.Config, mgr *session.Manager, store tokenstore.Store) error {
	// validation plus one refresh round trip
	timeout := 2 * cfg.Identity.Timeout

	async.SafeGo(ctx, timeout, "session bootstrap", mgr.Bootstrap)
	select {
	case <-mgr.Ready():
	case <-ctx.Done():
		return nil
	}

	if schedule := cfg.Portal.RevalidateSchedule; schedule != "" {
		revalidate := async.NewTrigger(ctx, "session revalidate", timeout, mgr.Revalidate)
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(schedule, revalidate.Fire); err != nil {
			return fmt.Errorf("invalid revalidate schedule %q: %w", schedule, err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	if watcher, ok := store.(tokenstore.Watcher); ok && cfg.Portal.WatchTokenFile {
		syncer := async.NewTrigger(ctx, "session sync", timeout, mgr.Sync)
		if err := watcher.Watch(ctx, syncer.Fire); err != nil {
			return fmt.Errorf("failed to watch token store: %w", err)
		}
		return nil
	}

	<-ctx.Done()
	return nil
}
