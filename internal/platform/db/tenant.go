package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	// ClinicSlugKey carries the tenant clinic slug for the request.
	ClinicSlugKey contextKey = "clinic_slug"
	DBConnKey     contextKey = "db_conn"
	TxKey         contextKey = "db_tx"
)

var clinicSlugPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ClinicTenantMiddleware resolves the request's clinic (brand) and scopes the
// database connection to that clinic's schema. Each clinic gets its own
// Postgres schema; shared reference data lives in the shared schema.
func ClinicTenantMiddleware(pool *pgxpool.Pool, defaultClinic string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug := extractClinicSlug(c, defaultClinic)

			if !clinicSlugPattern.MatchString(slug) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			schema := fmt.Sprintf("clinic_%s", slug)
			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", schema))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "clinic resolution failed")
			}

			ctx = context.WithValue(ctx, ClinicSlugKey, slug)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_slug", slug)
			c.Set("db", conn)

			return next(c)
		}
	}
}

func extractClinicSlug(c echo.Context, defaultClinic string) string {
	// 1. Check JWT claim (set by auth middleware)
	if slug, ok := c.Get("jwt_clinic_slug").(string); ok && slug != "" {
		return slug
	}

	// 2. Check X-Clinic-ID header (portal fetch wrappers send this)
	if slug := c.Request().Header.Get("X-Clinic-ID"); slug != "" {
		return slug
	}

	// 3. Check query parameter
	if slug := c.QueryParam("clinic_id"); slug != "" {
		return slug
	}

	return defaultClinic
}

// ConnFromContext retrieves the clinic-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// ClinicFromContext retrieves the clinic slug from context.
func ClinicFromContext(ctx context.Context) string {
	slug, _ := ctx.Value(ClinicSlugKey).(string)
	return slug
}

// TxFromContext retrieves an in-flight transaction from context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}

// WithTx runs fn inside a transaction scoped to the clinic connection from
// context (falling back to the pool). The transaction is stored in the derived
// context so repositories pick it up transparently.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	var tx pgx.Tx
	var err error

	if conn := ConnFromContext(ctx); conn != nil {
		tx, err = conn.Begin(ctx)
	} else {
		tx, err = pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, TxKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// WithClinic runs fn with a connection scoped to the clinic's schema, the way
// the tenant middleware scopes HTTP requests. Background jobs use this to
// sweep one clinic at a time.
func WithClinic(ctx context.Context, pool *pgxpool.Pool, slug string, fn func(ctx context.Context) error) error {
	if !clinicSlugPattern.MatchString(slug) {
		return fmt.Errorf("invalid clinic identifier: %s", slug)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO clinic_%s, shared, public", slug)); err != nil {
		return fmt.Errorf("scope to clinic %s: %w", slug, err)
	}

	ctx = context.WithValue(ctx, ClinicSlugKey, slug)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return fn(ctx)
}

// CreateClinicSchema creates a new schema for a clinic and runs all migrations
// against it. If migrationsDir is empty, migrations are skipped.
func CreateClinicSchema(ctx context.Context, pool *pgxpool.Pool, slug string, migrationsDir string) error {
	if !clinicSlugPattern.MatchString(slug) {
		return fmt.Errorf("invalid clinic identifier: %s", slug)
	}

	schema := fmt.Sprintf("clinic_%s", slug)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
