package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapp/internal/api"
	"github.com/eleven-am/todoapp/internal/identity"
	"github.com/eleven-am/todoapp/internal/logger"
	"github.com/eleven-am/todoapp/internal/store"
	"github.com/eleven-am/todoapp/internal/todo"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Start the JSON API. The database schema must already be in place;
run "todoapp migrate" first on a fresh database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, appConfig)
		},
	}
}

func runServe(ctx context.Context, cfg *Config) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	log := logger.CLI()

	dbCfg := store.NewDBConfig(cfg.Database.URL)
	dbCfg.MaxOpenConns = cfg.Database.MaxConnections
	dbCfg.MaxIdleConns = cfg.Database.MaxIdleConnections
	dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime

	db, err := dbCfg.Connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := store.New(db, logger.DB())
	if err != nil {
		return err
	}

	var denylist identity.Denylist
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()

		if err := rc.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		denylist = identity.NewRedisDenylist(rc)
	} else {
		log.Warn("no redis url configured; logout cannot revoke refresh tokens")
	}

	tokens, err := identity.NewTokens(identity.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	}, denylist)
	if err != nil {
		return err
	}

	e := api.NewServer(api.ServerConfig{
		BodyLimit:    cfg.Server.BodyLimit,
		AllowOrigins: cfg.Server.AllowOrigins,
	}, api.Services{
		Categories: todo.NewCategories(st),
		Items:      todo.NewItems(st),
		Users:      identity.NewUsers(st, cfg.Auth.BcryptCost),
		Tokens:     tokens,
		Health:     st,
	}, logger.HTTP())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		log.WithField("listen", cfg.Server.Listen).Info("server started")
		if err := e.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
