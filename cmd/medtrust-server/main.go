package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medtrust/medtrust/internal/config"
	"github.com/medtrust/medtrust/internal/domain/access"
	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/domain/identity"
	"github.com/medtrust/medtrust/internal/domain/patient"
	"github.com/medtrust/medtrust/internal/domain/trust"
	"github.com/medtrust/medtrust/internal/platform/analytics"
	"github.com/medtrust/medtrust/internal/platform/auth"
	"github.com/medtrust/medtrust/internal/platform/db"
	"github.com/medtrust/medtrust/internal/platform/locality"
	"github.com/medtrust/medtrust/internal/platform/middleware"
	"github.com/medtrust/medtrust/internal/platform/notification"
	"github.com/medtrust/medtrust/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medtrust-server",
		Short: "Adaptive access gateway for patient records",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// fanoutPublisher delivers every completed decision to all sinks.
type fanoutPublisher []access.Publisher

func (f fanoutPublisher) PublishDecision(d *access.Decision) {
	for _, p := range f {
		p.PublishDecision(d)
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	classifier, err := locality.NewClassifier(cfg.TrustedCIDRs)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid trusted network configuration")
	}

	sessionCfg := auth.SessionConfig{
		Secret: []byte(cfg.SessionSecret),
		TTL:    time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		Issuer: "medtrust",
	}

	// Repositories
	auditRepo := auditlog.NewEntryRepoPG(pool)
	trustRepo := trust.NewScoreRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	principalRepo := identity.NewPrincipalRepoPG(pool)
	challengeRepo := identity.NewChallengeRepoPG(pool)
	grantRepo := access.NewTempGrantRepoPG(pool)

	// Notifications
	center := notification.NewCenter(
		&notification.LogEmailSender{Log: logger},
		&notification.LogSMSSender{Log: logger},
		notification.NewTemplateEngine(),
	)
	otpTTL := time.Duration(cfg.OTPTTLSeconds) * time.Second
	otpSender := notification.NewOTPSender(center, otpTTL.String())
	decisionNotifier := notification.NewDecisionNotifier(center, cfg.AdminEmail, logger)

	// Live event fan-out
	hub := websocket.NewHub(logger)
	tracker := analytics.NewDecisionTracker(500)
	publisher := fanoutPublisher{
		websocket.NewDecisionBroadcaster(hub, logger),
		tracker,
	}

	// Services
	auditSvc := auditlog.NewService(auditRepo)
	trustSvc := trust.NewService(trustRepo)
	patientSvc := patient.NewService(patientRepo, auditSvc, logger)
	identitySvc := identity.NewService(principalRepo, challengeRepo, otpSender, auditSvc, sessionCfg, otpTTL, logger)
	accessSvc := access.NewService(
		access.Policy{
			NormalThreshold:           cfg.NormalThreshold,
			RestrictedThreshold:       cfg.RestrictedThreshold,
			DeltaGrant:                cfg.DeltaGrant,
			DeltaDeny:                 cfg.DeltaDeny,
			DeltaFlag:                 cfg.DeltaFlag,
			DeltaJustified:            cfg.DeltaJustified,
			EmergencyMinJustification: cfg.EmergencyMinJustification,
			TempAccessTTL:             time.Duration(cfg.TempAccessMinutes) * time.Minute,
		},
		patientRepo, trustSvc, auditSvc, grantRepo, publisher, decisionNotifier, logger,
	)

	if cfg.AdminEmail != "" && cfg.AdminPasswordHash != "" {
		if err := ensureAdmin(ctx, principalRepo, cfg); err != nil {
			logger.Fatal().Err(err).Msg("failed to provision admin principal")
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Public surface
	e.GET("/health", db.HealthHandler(pool))
	e.GET("/ip_check", locality.IPCheckHandler(classifier))

	identityHandler := identity.NewHandler(identitySvc, patientSvc)
	identityHandler.RegisterPublicRoutes(e)

	// Everything below requires a session.
	protected := e.Group("", auth.SessionMiddleware(sessionCfg), middleware.Audit(logger))

	access.NewHandler(accessSvc, classifier).RegisterRoutes(protected)
	patient.NewHandler(patientSvc).RegisterRoutes(protected)
	auditlog.NewHandler(auditSvc).RegisterRoutes(protected)
	trust.NewHandler(trustSvc).RegisterRoutes(protected)
	identityHandler.RegisterRoutes(protected)
	notification.NewHandler(center).RegisterRoutes(protected)
	analytics.NewHandler(tracker).RegisterRoutes(protected)
	websocket.NewHandler(hub).RegisterRoutes(protected)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("medtrust server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}

// ensureAdmin provisions the configured admin principal on first boot.
func ensureAdmin(ctx context.Context, repo *identity.PrincipalRepoPG, cfg *config.Config) error {
	_, err := repo.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return err
	}
	return repo.Create(ctx, &identity.Principal{
		Name:         "Administrator",
		Email:        cfg.AdminEmail,
		Role:         auth.RoleAdmin,
		PasswordHash: cfg.AdminPasswordHash,
		TrustScore:   trust.MaxScore,
	})
}
