package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/config"
	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/domain/action"
	"github.com/healthtrack/healthtrack/internal/domain/audit"
	"github.com/healthtrack/healthtrack/internal/domain/careteam"
	"github.com/healthtrack/healthtrack/internal/domain/history"
	"github.com/healthtrack/healthtrack/internal/domain/stats"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/internal/platform/db"
	"github.com/healthtrack/healthtrack/internal/platform/middleware"
	"github.com/healthtrack/healthtrack/internal/platform/webhook"
	"github.com/healthtrack/healthtrack/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthtrack-server",
		Short: "IoT health tracking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

// connect loads the configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			gender, _ := cmd.Flags().GetString("gender")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := account.NewService(account.NewUserRepoPG(pool))
			u, err := svc.CreateUser(ctx, &account.CreateUserRequest{
				Name:     name,
				Email:    email,
				Password: password,
				Gender:   account.Gender(gender),
				Role:     account.RoleAdmin,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %s with id %d.\n", u.Email, u.ID)
			return nil
		},
	}
	createAdmin.Flags().String("name", "", "Display name")
	createAdmin.Flags().String("email", "", "Login email")
	createAdmin.Flags().String("password", "", "Login password")
	createAdmin.Flags().String("gender", string(account.GenderRatherNotSay), "male, female or rather_not_say")
	_ = createAdmin.MarkFlagRequired("name")
	_ = createAdmin.MarkFlagRequired("email")
	_ = createAdmin.MarkFlagRequired("password")

	cmd.AddCommand(createAdmin)
	return cmd
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// sessionSkipper keeps health checks off the request transaction.
func sessionSkipper(c echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/health")
}

func runServer() error {
	ctx := context.Background()
	cfg, pool, err := connect(ctx)
	if err != nil {
		startLogger := newLogger(os.Getenv("ENV"), "info")
		startLogger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer pool.Close()

	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger.Info().Msg("connected to database")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			AttachStacktrace: true,
		}); err != nil {
			logger.Error().Err(err).Msg("sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	e, limiter, err := newServer(cfg, pool, logger)
	if err != nil {
		return err
	}
	defer limiter.Close()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newNotifier always logs actions and also posts them to ACTION_WEBHOOK_URL
// when one is configured.
func newNotifier(cfg *config.Config, logger zerolog.Logger) (action.Notifier, error) {
	notifiers := action.Notifiers{action.NewLogNotifier(logger)}
	if cfg.ActionWebhookURL != "" {
		opts := []webhook.Option{
			webhook.WithRetryDelays(webhook.Backoff(cfg.ActionWebhookRetryDelay, cfg.ActionWebhookRetries)...),
		}
		if cfg.ActionWebhookTimeout > 0 {
			opts = append(opts, webhook.WithHTTPClient(&http.Client{Timeout: cfg.ActionWebhookTimeout}))
		}
		client, err := webhook.NewClient(cfg.ActionWebhookURL, cfg.ActionWebhookSecret, opts...)
		if err != nil {
			return nil, fmt.Errorf("action webhook: %w", err)
		}
		notifiers = append(notifiers, action.NewWebhookNotifier(client))
	}
	return notifiers, nil
}

// newServer wires middleware, stores, services and routes.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, *middleware.RateLimiter, error) {
	issuer, err := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.Algorithm, cfg.AccessTokenTTL())
	if err != nil {
		return nil, nil, err
	}

	// Stores and services
	users := account.NewUserRepoPG(pool)
	accountSvc := account.NewService(users)
	historySvc := history.NewService(history.NewRepoPG(pool))
	careteamSvc := careteam.NewService(careteam.NewRepoPG(pool), users, historySvc)
	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	actionSvc := action.NewService(action.NewRepoPG(pool), careteamSvc, notifier, logger)
	auditStore := audit.NewStorePG(pool)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limiter := middleware.NewRateLimiter(rateLimitCfg)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(limiter.Middleware())
	// Audit wraps Session so a failed commit is recorded as a 500.
	e.Use(middleware.Audit(logger, audit.NewRecorder(auditStore)))
	e.Use(db.Session(pool, logger, sessionSkipper))
	e.Use(auth.Authenticate(issuer, accountSvc, auth.AuthSkipper))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	account.NewHandler(accountSvc, issuer).RegisterRoutes(e)
	careteam.NewHandler(careteamSvc).RegisterRoutes(e)
	history.NewHandler(historySvc).RegisterRoutes(e)
	action.NewHandler(actionSvc).RegisterRoutes(e)
	stats.NewHandler(stats.NewCounterPG(pool)).RegisterRoutes(e)
	audit.NewHandler(audit.NewService(auditStore)).RegisterRoutes(e)

	return e, limiter, nil
}
