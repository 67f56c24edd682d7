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

	"calldesk-platform/internal/alerts"
	"calldesk-platform/internal/audit"
	"calldesk-platform/internal/auth"
	"calldesk-platform/internal/calls"
	"calldesk-platform/internal/config"
	"calldesk-platform/internal/history"
	"calldesk-platform/internal/httpapi"
	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/messaging"
	"calldesk-platform/internal/metrics"
	"calldesk-platform/internal/notify"
	"calldesk-platform/internal/outbound"
	"calldesk-platform/internal/signaling"
	"calldesk-platform/internal/webhook"
	"calldesk-platform/pkg/logger"
	"calldesk-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
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

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// Services, bottom-up.
	dir := leads.NewPostgresDirectory(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	callSvc := calls.NewService(calls.NewPostgresRepo(db), dir)
	msgSvc := messaging.NewService(messaging.NewPostgresRepo(db), dir, outbound.NewTwilioChannel(cfg.Twilio))
	alertSvc := alerts.NewService(alerts.NewPostgresRepo(db), msgSvc, cfg.Alerts.ReplyWindow)
	notifySvc := notify.NewService(notify.NewPostgresRepo(db), msgSvc, dir)
	historySvc := history.NewService(calls.NewPostgresRepo(db), messaging.NewPostgresRepo(db))
	signalingSvc := signaling.NewService(signaling.Config{
		AccountSID:   cfg.Twilio.AccountSID,
		APIKeySID:    cfg.Twilio.APIKeySID,
		APIKeySecret: cfg.Twilio.APIKeySecret,
		TwiMLAppSID:  cfg.Twilio.TwiMLAppSID,
		TokenTTL:     cfg.Twilio.SignalingTokenTTL,
	})

	carrier := &webhook.Router{
		Calls:      callSvc,
		Messages:   msgSvc,
		Alerts:     alertSvc,
		Notify:     notifySvc,
		Claims:     webhook.RedisClaims{RDB: rdb},
		FromNumber: cfg.Twilio.FromNumber,
	}
	verifier := webhook.NewSignatureVerifier(cfg.Twilio.AuthToken, cfg.Twilio.WebhookBaseURL, auditSvc)

	api := httpapi.Handlers{
		Auth:       authManager,
		Signaling:  signalingSvc,
		Calls:      callSvc,
		Messages:   msgSvc,
		Alerts:     alertSvc,
		Notify:     notifySvc,
		History:    historySvc,
		Audit:      auditSvc,
		Dialer:     outbound.NewTwilioDialer(cfg.Twilio),
		Leads:      dir,
		FromNumber: cfg.Twilio.FromNumber,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		db:       db,
		api:      api,
		carrier:  carrier,
		verifier: verifier,
		authMW:   auth.RequireAccessToken(authManager),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
