package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/app"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/approvals"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/assignments"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/authz"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/observability"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/platform/cache"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/platform/db"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/principals"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rolesCfg, err := roles.LoadConfig(cfg.ChainsPath)
	if err != nil {
		logger.Error("load chains config", slog.String("path", cfg.ChainsPath), slog.Any("error", err))
		os.Exit(1)
	}
	catalog, err := roles.CatalogFromConfig(rolesCfg)
	if err != nil {
		logger.Error("build role catalog", slog.Any("error", err))
		os.Exit(1)
	}
	resolver, err := approvals.NewChainResolver(catalog, rolesCfg)
	if err != nil {
		logger.Error("build chain resolver", slog.Any("error", err))
		os.Exit(1)
	}
	// The assignment and step tables foreign-key onto roles.
	if err := roles.NewRepository(pool).Sync(ctx, catalog); err != nil {
		logger.Error("sync role catalog", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, jobsClient, logger, metrics.RecordAuditRetry)

	assignmentRepo := assignments.NewRepository(pool)
	roleCache := assignments.NewRoleCache(redisClient, cfg.CacheTTL)
	assignmentSvc := assignments.NewService(catalog, assignmentRepo, roleCache, recorder, logger)

	approvalRepo := approvals.NewRepository(pool)
	approvalSvc := approvals.NewService(catalog, resolver, approvalRepo, assignmentSvc, recorder, logger)

	facade := authz.NewFacade(catalog, assignmentSvc, approvalSvc, auditRepo)
	authzHandler := authz.NewHandler(logger, facade, metrics)

	principalRepo := principals.NewRepository(pool)
	tokens := principals.NewTokenStore(redisClient, cfg.TokenTTL)
	principalSvc := principals.NewService(principalRepo, tokens)
	principalsHandler := principals.NewHandler(logger, principalSvc)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PrincipalsHandler: principalsHandler,
		AuthzHandler:      authzHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
