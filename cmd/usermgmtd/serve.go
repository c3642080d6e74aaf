package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrilink/usermgmt/internal/auth"
	"github.com/agrilink/usermgmt/internal/config"
	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/metrics"
	"github.com/agrilink/usermgmt/internal/notify"
	"github.com/agrilink/usermgmt/internal/server"
	"github.com/agrilink/usermgmt/internal/service"
	"github.com/agrilink/usermgmt/internal/store"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API.",

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Close()
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address, overrides UMS_LISTEN_ADDR")
}

func tokenIssuer(cfg *config.Config) (*auth.Issuer, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		s, err := auth.NewRandomSecretB64(32)
		if err != nil {
			return nil, err
		}
		logger.Warn("UMS_JWT_SECRET is not set, using an ephemeral secret; tokens will not survive a restart")
		secret = s
	}
	return auth.NewIssuer(auth.DecodeSecret(secret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL), nil
}

func openService(cfg *config.Config, mail service.Mailer, rec service.Recorder) (*service.Service, *store.DB, error) {
	tokens, err := tokenIssuer(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.StorageDriver, cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	deps := service.Deps{
		DB:      db,
		Tokens:  tokens,
		Mail:    mail,
		Metrics: rec,
		Options: service.Options{
			ResetTokenTTL:     cfg.ResetTokenTTL,
			AlertThreshold:    cfg.AlertThreshold,
			PageSize:          cfg.PageSize,
			ExpertAutoApprove: cfg.ExpertAutoApprove,
		},
	}
	opts := integrations.Options{Timeout: cfg.UpstreamTimeout, Retries: cfg.UpstreamRetries}
	if cfg.ImageAnalysisURL != "" {
		deps.Images = integrations.NewImageAnalysisClient(cfg.ImageAnalysisURL, opts)
	}
	if cfg.EducationURL != "" {
		deps.Education = integrations.NewEducationClient(cfg.EducationURL, opts)
	}
	return service.New(deps), db, nil
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	mail := notify.NewDispatcher(notify.NewMailer(cfg.SMTP), cfg.MailWorkers, cfg.MailQueueLen, reg.EmailResult)

	svc, db, err := openService(cfg, mail, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close database: %v", err)
		}
	}()

	var wg sync.WaitGroup
	collector := metrics.NewCollector(db, reg, cfg.MetricsInterval, cfg.MetricsRetentionDays)
	wg.Add(1)
	go func() {
		defer wg.Done()
		collector.Run(ctx)
	}()

	srv := server.New(server.Config{
		ListenAddr:  cfg.ListenAddr,
		Service:     svc,
		Metrics:     reg,
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
	})
	logger.Info("usermgmtd %s starting (storage=%s)", version, cfg.StorageDriver)
	runErr := srv.Run(ctx)

	stop()
	wg.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mail.Close(drainCtx); err != nil {
		logger.Warn("mail queue not fully drained: %v", err)
	}
	logger.Info("stopped")
	return runErr
}
