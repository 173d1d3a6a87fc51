package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/switchback-sms/switchback"
	httpadapter "github.com/switchback-sms/switchback/internal/adapters/http"
	"github.com/switchback-sms/switchback/internal/config"
	"github.com/switchback-sms/switchback/internal/hash"
	"github.com/switchback-sms/switchback/internal/logging"
	"github.com/switchback-sms/switchback/pkg/adapters/memory"
	"github.com/switchback-sms/switchback/pkg/adapters/postgres"
	redisadapter "github.com/switchback-sms/switchback/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/switchback-sms/switchback/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SMS webhook server",
	Long:  `Starts the webhook server that receives inbound SMS, advances survey sessions, and replies with TwiML.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("surveys") {
		cfg.SurveysDir, _ = cmd.Flags().GetString("surveys")
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	sessions, responses, optOuts, locker, closeStores, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	opts := []switchback.Option{
		switchback.WithLogger(logger),
		switchback.WithSessionStore(sessions),
		switchback.WithResponseStore(responses),
	}
	if locker != nil {
		opts = append(opts, switchback.WithLocker(locker))
	}
	engine, err := switchback.New(cfg.SurveysDir, opts...)
	if err != nil {
		return err
	}

	serverOpts := []httpadapter.Option{httpadapter.WithLogger(logger)}
	if cfg.DefaultSurveyID != "" {
		serverOpts = append(serverOpts, httpadapter.WithDefaultSurvey(cfg.DefaultSurveyID))
	}
	if cfg.ValidateTwilioSignature {
		serverOpts = append(serverOpts, httpadapter.WithSignatureValidation(cfg.TwilioAuthToken, cfg.PublicURL))
	}
	server := httpadapter.NewServer(
		engine.Registry(), engine.Manager(), engine.Runtime(),
		hash.New(cfg.PhoneHashSalt), optOuts, serverOpts...)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "surveys_dir", cfg.SurveysDir, "store", cfg.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("force close: %w", err)
			}
		}
		logger.Info("server stopped")
	}
	return nil
}

// buildStores picks the persistence backend from configuration.
func buildStores(cfg *config.Config) (ports.SessionStore, ports.ResponseStore, ports.OptOutStore, ports.DistributedLocker, func(), error) {
	switch cfg.Store {
	case "memory", "":
		store := memory.NewStore()
		return store, store, store, nil, func() {}, nil

	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisadapter.NewFromClient(client)
		locker := redisadapter.NewLocker(client, "switchback:")
		return store, store, store, locker, func() { client.Close() }, nil

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return store, store, store, nil, func() { store.Close() }, nil

	default:
		return nil, nil, nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
