package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lgtm-migrator/dtel/internal/audit"
	"github.com/lgtm-migrator/dtel/internal/auth"
	"github.com/lgtm-migrator/dtel/internal/config"
	"github.com/lgtm-migrator/dtel/internal/endpoint"
	"github.com/lgtm-migrator/dtel/internal/history"
	"github.com/lgtm-migrator/dtel/internal/httpapi"
	"github.com/lgtm-migrator/dtel/internal/i18n"
	"github.com/lgtm-migrator/dtel/internal/mailbox"
	"github.com/lgtm-migrator/dtel/internal/perms"
	"github.com/lgtm-migrator/dtel/internal/session"
	"github.com/lgtm-migrator/dtel/internal/shard"
	"github.com/lgtm-migrator/dtel/internal/transport"
	"github.com/lgtm-migrator/dtel/pkg/logger"
	"github.com/lgtm-migrator/dtel/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gateway := transport.NewRESTClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, log)
	invoker := shard.NewRedisInvoker(rdb, cfg.Shard.ID, log)

	var tiers perms.Resolver = perms.StaticResolver{}
	if cfg.Call.SupportGuildID != "" {
		guildID := cfg.Call.SupportGuildID
		tiers = perms.NewCachedResolver(func(ctx context.Context, userID string) ([]string, error) {
			return gateway.MemberRoles(ctx, guildID, userID)
		}, perms.RoleMap{CustomerSupport: cfg.Call.SupportRoleID}, nil)
	}

	mailboxes := mailbox.NewPostgresRepo(db)
	calls := session.NewManager(session.Deps{
		Log:       log,
		Transport: gateway,
		Sessions:  session.NewPostgresRepo(db),
		Relays:    session.NewPostgresRelayRepo(db),
		Endpoints: endpoint.NewPostgresRepo(db),
		Mailboxes: mailboxes,
		Perms:     tiers,
		Texts:     i18n.NewCatalog(),
		Resolver:  shard.NewResolver(cfg.Shard.ID, cfg.Shard.Count, gateway),
		Invoker:   invoker,
		Audit:     audit.NewService(audit.NewPostgresRepo(db), cfg.Shard.ID),
		Guard:     session.NewRedisDialGuard(rdb),
		Settings: session.Settings{
			ShardID:       cfg.Shard.ID,
			ShardCount:    cfg.Shard.Count,
			RingTimeout:   cfg.Call.RingTimeout,
			SupportNumber: cfg.Call.SupportNumber,
			SupportRoleID: cfg.Call.SupportRoleID,
			AliasNumbers:  cfg.Call.AliasNumbers,
		},
	})

	// Peer signaling must be live before the gateway sends any events,
	// or a cross-shard call could ring with nobody listening.
	if err := invoker.Listen(rootCtx, calls.HandleInvocation); err != nil {
		log.Error("shard listener failed", "err", err)
		os.Exit(1)
	}

	h := httpapi.Handlers{
		Auth:      authManager,
		Calls:     calls,
		History:   history.NewService(history.NewPostgresRepo(db)),
		Mailboxes: mailbox.NewService(mailboxes),
		Endpoints: endpoint.NewPostgresRepo(db),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("shard listening",
			"addr", srv.Addr, "env", cfg.App.Env,
			"shard_id", cfg.Shard.ID, "shard_count", cfg.Shard.Count)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated", "live_calls", calls.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
