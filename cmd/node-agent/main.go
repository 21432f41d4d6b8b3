package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parasail-network/node-agent/internal/api"
	"github.com/parasail-network/node-agent/internal/auth"
	"github.com/parasail-network/node-agent/internal/config"
	"github.com/parasail-network/node-agent/internal/credentials"
	"github.com/parasail-network/node-agent/internal/node"
	"github.com/parasail-network/node-agent/internal/scheduler"
	"github.com/parasail-network/node-agent/internal/signer"
	"github.com/parasail-network/node-agent/internal/status"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Key and credential problems are the only fatal errors; everything
	// after this point is retried or logged.
	if cfg.PrivateKey == "" {
		log.Fatal("PRIVATE_KEY is not set")
	}
	sgn, err := signer.New(cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to load wallet key", zap.Error(err))
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open credentials store", zap.Error(err))
	}
	session, err := credentials.NewSession(ctx, store)
	if err != nil {
		log.Fatal("failed to load credentials", zap.Error(err))
	}
	changed, err := session.EnsureAddress(ctx, sgn.Address())
	if err != nil {
		log.Fatal("failed to persist wallet address", zap.Error(err))
	}
	if changed {
		log.Info("stored wallet address corrected")
	}
	log.Info("wallet ready", zap.String("address", sgn.Address()))

	client := api.NewClient(api.Config{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.RequestTimeout,
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.RetryInitialDelay,
	}, session, log)
	authMgr := auth.NewManager(sgn, client, session, log)
	nodeSvc := node.NewService(client, authMgr, session, log)

	if err := authMgr.EnsureAuthenticated(ctx); err != nil {
		log.Warn("initial authentication failed, first cycle will retry", zap.Error(err))
	}

	// First cycle runs immediately; after that the scheduler self-paces
	// from the server's next check-in timestamp.
	if err := nodeSvc.Onboard(ctx); err != nil {
		log.Error("initial onboard failed", zap.Error(err))
	}
	time.Sleep(cfg.ActionPause)
	if _, err := nodeSvc.CheckIn(ctx); err != nil {
		log.Error("initial check-in failed", zap.Error(err))
	}
	time.Sleep(cfg.ActionPause)

	sched := scheduler.New(nodeSvc, log)
	sched.Start(ctx)

	if cfg.StatusPort != "" {
		srv := status.NewServer(cfg.StatusPort, sched, session, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	cancel()
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (credentials.Store, error) {
	switch cfg.CredentialsBackend {
	case "redis":
		return credentials.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKey, log)
	case "memory":
		return credentials.NewMemoryStore(), nil
	default:
		return credentials.NewFileStore(cfg.CredentialsFile, log), nil
	}
}
