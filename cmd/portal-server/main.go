package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/doctorsportal/portal/internal/config"
	"github.com/doctorsportal/portal/internal/domain/booking"
	"github.com/doctorsportal/portal/internal/domain/catalog"
	"github.com/doctorsportal/portal/internal/domain/identity"
	"github.com/doctorsportal/portal/internal/platform/auth"
	"github.com/doctorsportal/portal/internal/platform/db"
	"github.com/doctorsportal/portal/internal/platform/events"
	"github.com/doctorsportal/portal/internal/platform/middleware"
	"github.com/doctorsportal/portal/internal/platform/payment"
	"github.com/doctorsportal/portal/internal/platform/telemetry"
	"github.com/doctorsportal/portal/internal/server"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "portal-server",
		Short:        "Doctors portal booking API server",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())
	root.AddCommand(catalogCmd())
	return root
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "portal-server").Logger()
}

// openPool loads config and connects. Commands close the pool themselves.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg.Env, os.Stderr)
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return nil, nil, logger, err
	}
	return cfg, pool, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.NewMigrator(pool)
			if err != nil {
				return err
			}
			defer migrator.Close()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.NewMigrator(pool)
			if err != nil {
				return err
			}
			defer migrator.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-30s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewUserRepoPG(pool), identity.NewDoctorRepoPG(pool))
			u, err := svc.PromoteToAdmin(ctx, args[0])
			if err != nil {
				return fmt.Errorf("promote %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", u.Email, u.Role)
			return nil
		},
	})

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the treatment catalog",
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert treatments from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d treatment(s) valid, nothing written.\n", len(items))
				return nil
			}

			ctx := cmd.Context()
			_, pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := catalog.NewService(catalog.NewTreatmentRepoPG(pool), db.NewTransactor(pool))
			n, err := svc.Import(ctx, items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d treatment(s).\n", n)
			return nil
		},
	}
	importCmd.Flags().Bool("dry-run", false, "Validate the file without writing")
	cmd.AddCommand(importCmd)

	return cmd
}

func newGateway(cfg *config.Config) (payment.Gateway, error) {
	if !cfg.PaymentsEnabled() {
		return payment.Disabled{}, nil
	}
	return payment.NewOmiseGateway(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.PaymentSourceType, cfg.PaymentCurrency)
}

func newLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (middleware.Limiter, func()) {
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}), func() {}
	}
	client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory rate limiter")
		return newLimiter(ctx, &config.Config{RateLimitRPS: cfg.RateLimitRPS, RateLimitBurst: cfg.RateLimitBurst}, logger)
	}
	limit := int(cfg.RateLimitRPS)
	if limit < 1 {
		limit = 1
	}
	return middleware.NewRedisLimiter(client, limit, time.Second), func() { _ = client.Close() }
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		newLogger(os.Getenv("ENV"), os.Stdout).Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid config")
		return err
	}

	ctx := context.Background()

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()

	// Tracing
	tracing, err := telemetry.NewProvider(ctx, telemetry.TelemetryConfig{
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	}, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start tracing")
		return err
	}

	// Events
	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		} else {
			defer amqpPub.Close()
			publisher = amqpPub
		}
	}

	// Payments
	gateway, err := newGateway(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure payments")
		return err
	}
	if !cfg.PaymentsEnabled() {
		logger.Warn().Msg("omise keys not set, payment intents disabled")
	}

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	// Services
	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: []byte(cfg.TokenSecret), TTL: cfg.TokenTTL})
	if err != nil {
		return err
	}
	idSvc := identity.NewService(identity.NewUserRepoPG(pool), identity.NewDoctorRepoPG(pool))
	gate := auth.NewGate(idSvc)
	catSvc := catalog.NewService(catalog.NewTreatmentRepoPG(pool), db.NewTransactor(pool))
	bookSvc := booking.NewService(
		booking.NewBookingRepoPG(pool),
		booking.NewPaymentRepoPG(pool),
		catSvc,
		gate,
		booking.WithGateway(gateway),
		booking.WithPublisher(publisher),
		booking.WithLogger(logger.With().Str("component", "booking").Logger()),
	)

	e := server.New(server.Options{
		Config:   cfg,
		Logger:   logger,
		Tokens:   tokens,
		Gate:     gate,
		Identity: idSvc,
		Catalog:  catSvc,
		Booking:  bookSvc,
		Limiter:  limiter,
		Tracing:  tracing,
		DBHealth: db.HealthHandler(pool),
	})

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
