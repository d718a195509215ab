package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fusehealth/commerce-api/internal/config"
	"github.com/fusehealth/commerce-api/internal/domain/affiliate"
	"github.com/fusehealth/commerce-api/internal/domain/clinic"
	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/domain/patient"
	"github.com/fusehealth/commerce-api/internal/domain/payment"
	"github.com/fusehealth/commerce-api/internal/domain/pharmacy"
	"github.com/fusehealth/commerce-api/internal/domain/product"
	"github.com/fusehealth/commerce-api/internal/domain/questionnaire"
	"github.com/fusehealth/commerce-api/internal/domain/subscription"
	"github.com/fusehealth/commerce-api/internal/domain/tier"
	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/internal/platform/cron"
	"github.com/fusehealth/commerce-api/internal/platform/db"
	"github.com/fusehealth/commerce-api/internal/platform/events"
	"github.com/fusehealth/commerce-api/internal/platform/logging"
	"github.com/fusehealth/commerce-api/internal/platform/middleware"
	"github.com/fusehealth/commerce-api/internal/platform/payments"
	"github.com/fusehealth/commerce-api/internal/platform/phi"
	"github.com/fusehealth/commerce-api/internal/platform/webhook"
	"github.com/fusehealth/commerce-api/pkg/respond"
)

const (
	sharedSchema        = "shared"
	sharedMigrationsDir = "./migrations/shared"
	tenantMigrationsDir = "./migrations/tenant"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fuse-server",
		Short: "Multi-tenant healthcare commerce API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(jobsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the commerce API server",
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
			schema, _ := cmd.Flags().GetString("schema")
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
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", sharedSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", sharedMigrationsDir, "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
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
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
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
	}
	statusCmd.Flags().String("schema", sharedSchema, "Target schema for migrations")
	statusCmd.Flags().String("dir", sharedMigrationsDir, "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Use Atlas CLI for migration rollback: atlas schema apply --dir migrations/")
			return nil
		},
	})

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, _ := cmd.Flags().GetString("slug")
			if slug == "" {
				return fmt.Errorf("--slug is required")
			}

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

			fmt.Printf("Creating clinic schema: clinic_%s\n", slug)
			if err := db.CreateClinicSchema(ctx, pool, slug, tenantMigrationsDir); err != nil {
				return err
			}
			fmt.Println("Clinic schema created and migrated.")
			return nil
		},
	}
	createCmd.Flags().String("slug", "", "Clinic identifier (lowercase alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run background jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(context.Background())
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Printf("%-30s %s\n", "NAME", "SCHEDULE")
			for _, s := range app.registry.Statuses() {
				fmt.Printf("%-30s %s\n", s.Name, s.Schedule)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(context.Background())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.registry.RunNow(args[0]); err != nil {
				return err
			}
			for _, s := range app.registry.Statuses() {
				if s.Name == args[0] && s.LastError != "" {
					return fmt.Errorf("job %s failed: %s", s.Name, s.LastError)
				}
			}
			fmt.Printf("Job %s completed.\n", args[0])
			return nil
		},
	})

	return cmd
}

// clinicAccounts adapts the clinic service to the payment service's
// connected-account lookup.
type clinicAccounts struct {
	clinics *clinic.Service
}

func (a clinicAccounts) ProcessorAccount(ctx context.Context, slug string) (string, error) {
	c, err := a.clinics.GetClinicBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if c.ProcessorAcctID == "" {
		return "", fmt.Errorf("clinic %s has no connected processor account", slug)
	}
	return c.ProcessorAcctID, nil
}

// productCatalog adapts the product service to the subscription service's
// renewal line-item lookup.
type productCatalog struct {
	products *product.Service
}

func (p productCatalog) ProductName(ctx context.Context, id uuid.UUID) (string, error) {
	prod, err := p.products.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	return prod.Name, nil
}

// patientDirectory adapts the patient service to the order and subscription
// handlers' own-record lookup, confining patient sessions to their own rows.
type patientDirectory struct {
	patients *patient.Service
}

func (d patientDirectory) PatientIDByUser(ctx context.Context, userID string) (uuid.UUID, error) {
	p, err := d.patients.GetOwnPatient(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// app holds the wired service graph shared by the serve and jobs commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher events.Publisher
	registry  *cron.Registry

	tiers          *tier.Service
	clinics        *clinic.Service
	products       *product.Service
	patients       *patient.Service
	questionnaires *questionnaire.Service
	orders         *order.Service
	payments       *payment.Service
	subscriptions  *subscription.Service
	pharmacies     *pharmacy.Service
	affiliates     *affiliate.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Options{
		Dev:     cfg.IsDev(),
		File:    cfg.LogFile,
		MaxSize: cfg.LogFileMaxSize,
		Backups: cfg.LogFileBackups,
	})

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, pool: pool}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	} else {
		logger.Warn().Msg("no kafka brokers configured, domain events are discarded")
		a.publisher = events.NopPublisher{}
	}

	var processor payments.Processor
	if cfg.PaymentAPIURL != "" {
		processor = payments.NewHTTPProcessor(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	} else {
		if cfg.IsProduction() {
			a.Close()
			return nil, fmt.Errorf("PAYMENT_API_URL is required in production")
		}
		logger.Warn().Msg("no payment processor configured, using in-memory fake")
		processor = payments.NewFakeProcessor()
	}

	provisioner := clinic.SchemaProvisioner(func(ctx context.Context, slug string) error {
		return db.CreateClinicSchema(ctx, pool, slug, tenantMigrationsDir)
	})

	a.tiers = tier.NewService(tier.NewRepo(pool))
	a.clinics = clinic.NewService(clinic.NewRepo(pool), provisioner, logger)
	a.products = product.NewService(product.NewRepo(pool))
	a.patients = patient.NewService(patient.NewRepo(pool))
	a.questionnaires = questionnaire.NewService(questionnaire.NewRepo(pool))
	a.orders = order.NewService(order.NewRepo(pool), a.publisher)
	a.payments = payment.NewService(payment.NewRepo(pool), a.orders, processor,
		clinicAccounts{clinics: a.clinics}, a.publisher, logger)
	a.subscriptions = subscription.NewService(subscription.NewRepo(pool), a.orders,
		productCatalog{products: a.products}, a.publisher, logger)
	a.pharmacies = pharmacy.NewService(pharmacy.NewRepo(pool),
		pharmacy.NewHTTPClient(0), a.orders, a.publisher, logger)
	a.affiliates = affiliate.NewService(affiliate.NewRepo(pool), logger)

	a.registry = cron.NewRegistry(logger)
	if err := a.registerJobs(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("event publisher close failed")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("redis close failed")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// eachClinic runs fn once per active clinic, scoped to that clinic's schema.
// Per-clinic failures are logged and do not stop the sweep.
func (a *app) eachClinic(ctx context.Context, fn func(ctx context.Context, slug string) error) error {
	clinics, _, err := a.clinics.ListClinics(ctx, false, 500, 0)
	if err != nil {
		return fmt.Errorf("list clinics: %w", err)
	}
	for _, c := range clinics {
		slug := c.Slug
		if err := db.WithClinic(ctx, a.pool, slug, func(ctx context.Context) error {
			return fn(ctx, slug)
		}); err != nil {
			a.logger.Error().Err(err).Str("clinic", slug).Msg("clinic sweep failed")
		}
	}
	return nil
}

func (a *app) registerJobs() error {
	jobs := []cron.Job{
		{
			Name:       "subscription-renewal",
			Schedule:   "0 * * * *",
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				return a.eachClinic(ctx, func(ctx context.Context, slug string) error {
					n, err := a.subscriptions.RenewDue(ctx, slug)
					if n > 0 {
						a.logger.Info().Str("clinic", slug).Int("renewed", n).Msg("subscriptions renewed")
					}
					return err
				})
			},
		},
		{
			Name:     "pharmacy-status-sync",
			Schedule: "*/30 * * * *",
			Run: func(ctx context.Context) error {
				return a.eachClinic(ctx, func(ctx context.Context, slug string) error {
					n, err := a.pharmacies.SyncStatuses(ctx, slug)
					if n > 0 {
						a.logger.Info().Str("clinic", slug).Int("updated", n).Msg("dispatch statuses synced")
					}
					return err
				})
			},
		},
		{
			Name:     "pending-debt-retry",
			Schedule: "0 */6 * * *",
			Run: func(ctx context.Context) error {
				return a.eachClinic(ctx, func(ctx context.Context, slug string) error {
					settled, failed, err := a.payments.RetryPendingDebts(ctx)
					if settled > 0 || failed > 0 {
						a.logger.Info().Str("clinic", slug).
							Int("settled", settled).Int("failed", failed).
							Msg("pending debts retried")
					}
					return err
				})
			},
		},
	}
	for _, j := range jobs {
		if err := a.registry.Register(j); err != nil {
			return err
		}
	}
	return nil
}

// paymentEvent is the provider-side payload for charge and invoice events.
type paymentEvent struct {
	OrderID        uuid.UUID  `json:"order_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	ChargeID       string     `json:"charge_id"`
	RefundID       string     `json:"refund_id,omitempty"`
	AmountCents    int64      `json:"amount_cents"`
	ReversedCents  int64      `json:"reversed_cents,omitempty"`
	ClinicID       string     `json:"clinic_id"`
	AffiliateCode  string     `json:"affiliate_code,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// newWebhookDispatcher routes processor events into the domain services.
// Every handler runs inside the clinic schema named by the event.
func (a *app) newWebhookDispatcher() *webhook.Dispatcher {
	d := webhook.NewDispatcher(a.logger)

	withClinic := func(fn func(ctx context.Context, pe paymentEvent) error) webhook.Handler {
		return func(ctx context.Context, evt webhook.Event) error {
			var pe paymentEvent
			if err := json.Unmarshal(evt.Data, &pe); err != nil {
				return fmt.Errorf("decode event data: %w", err)
			}
			if pe.ClinicID == "" {
				return fmt.Errorf("event missing clinic_id")
			}
			return db.WithClinic(ctx, a.pool, pe.ClinicID, func(ctx context.Context) error {
				return fn(ctx, pe)
			})
		}
	}

	d.On("charge.succeeded", withClinic(func(ctx context.Context, pe paymentEvent) error {
		feeBps, err := a.clinics.EffectiveFeeBps(ctx, pe.ClinicID, a.cfg.PlatformFeeBps)
		if err != nil {
			return err
		}
		if _, err := a.payments.RecordCapture(ctx, pe.OrderID, pe.ChargeID, pe.AmountCents, feeBps); err != nil {
			return err
		}
		if pe.SubscriptionID != nil {
			if err := a.subscriptions.MarkRecovered(ctx, *pe.SubscriptionID); err != nil {
				a.logger.Warn().Err(err).
					Str("subscription_id", pe.SubscriptionID.String()).
					Msg("subscription not reactivated")
			}
		}
		if pe.AffiliateCode != "" {
			if _, err := a.affiliates.RecordCommission(ctx, pe.AffiliateCode, pe.OrderID, pe.AmountCents); err != nil {
				a.logger.Warn().Err(err).
					Str("affiliate_code", pe.AffiliateCode).
					Str("order_id", pe.OrderID.String()).
					Msg("commission not recorded")
			}
		}
		return a.publisher.Publish(ctx, events.TypePaymentSucceeded, pe.ClinicID, map[string]interface{}{
			"order_id":     pe.OrderID,
			"amount_cents": pe.AmountCents,
		})
	}))

	d.On("charge.failed", withClinic(func(ctx context.Context, pe paymentEvent) error {
		if pe.SubscriptionID != nil {
			if err := a.subscriptions.MarkPastDue(ctx, *pe.SubscriptionID); err != nil {
				return err
			}
		}
		return a.publisher.Publish(ctx, events.TypePaymentFailed, pe.ClinicID, map[string]interface{}{
			"order_id": pe.OrderID,
			"reason":   pe.Reason,
		})
	}))

	d.On("charge.refunded", withClinic(func(ctx context.Context, pe paymentEvent) error {
		_, err := a.payments.RecordExternalRefund(ctx, pe.ClinicID, pe.ChargeID, pe.RefundID, pe.AmountCents, pe.ReversedCents, pe.Reason)
		return err
	}))

	d.On("invoice.paid", withClinic(func(ctx context.Context, pe paymentEvent) error {
		return a.orders.MarkPaid(ctx, pe.OrderID)
	}))

	return d
}

func runServer() error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.cfg, a.logger
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = respond.HTTPErrorHandler(logger, cfg.IsDev())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Clinic-ID"},
	}))

	e.GET("/health", db.HealthHandler(a.pool))

	// Webhooks authenticate with the HMAC signature, not a bearer token, so
	// they mount outside the authenticated API group.
	var dedup webhook.DedupStore
	if a.redis != nil {
		dedup = webhook.NewRedisDedup(a.redis)
	} else {
		logger.Warn().Msg("no redis configured, webhook dedup is process-local")
		dedup = webhook.NewMemoryDedup()
	}
	receiver := webhook.NewReceiver(cfg.WebhookSecret, dedup, a.newWebhookDispatcher(), logger)
	receiver.Register(e.Group("/webhooks"))

	apiV1 := e.Group("/api/v1")

	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}
	apiV1.Use(db.ClinicTenantMiddleware(a.pool, cfg.DefaultClinic))

	audit := phi.NewAuditLogger(a.pool, logger)
	apiV1.Use(phi.AuditMiddleware(audit, logger))
	apiV1.Use(phi.MaskMiddleware(logger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	tier.NewHandler(a.tiers).RegisterRoutes(apiV1)
	clinic.NewHandler(a.clinics).RegisterRoutes(apiV1)
	product.NewHandler(a.products).RegisterRoutes(apiV1)
	patient.NewHandler(a.patients).RegisterRoutes(apiV1)
	questionnaire.NewHandler(a.questionnaires).RegisterRoutes(apiV1)
	patientDir := patientDirectory{patients: a.patients}
	order.NewHandler(a.orders, patientDir).RegisterRoutes(apiV1)
	payment.NewHandler(a.payments).RegisterRoutes(apiV1)
	subscription.NewHandler(a.subscriptions, patientDir).RegisterRoutes(apiV1)
	pharmacy.NewHandler(a.pharmacies).RegisterRoutes(apiV1)
	affiliate.NewHandler(a.affiliates).RegisterRoutes(apiV1)

	if cfg.IsDev() && cfg.CronDevStartSec > 0 {
		a.registry.EnableDevStartupRun(time.Duration(cfg.CronDevStartSec) * time.Second)
	}
	a.registry.Start()
	defer a.registry.Stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
