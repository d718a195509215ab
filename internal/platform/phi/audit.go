package phi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/internal/platform/db"
)

// AccessEntry is one row in the phi_access_log table: who read which resource
// on behalf of whom, and whether the session was an impersonation.
type AccessEntry struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	ActorID         string    `json:"actor_id"`
	Impersonation   bool      `json:"impersonation"`
	ClinicSlug      string    `json:"clinic_slug"`
	ResourceType    string    `json:"resource_type"`
	ResourceID      string    `json:"resource_id"`
	Action          string    `json:"action"` // read, create, update, delete, list
	Path            string    `json:"path"`
	Method          string    `json:"method"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
	RequestID       string    `json:"request_id"`
	StatusCode      int       `json:"status_code"`
	AccessedAt      time.Time `json:"accessed_at"`
}

// AuditLogger writes PHI access entries to the database, falling back to
// structured logs when no pool is configured (tests, dev without Postgres).
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAuditLogger creates an AuditLogger backed by the given connection pool.
func NewAuditLogger(pool *pgxpool.Pool, logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

// Record persists a PHI access entry. It uses the clinic-scoped connection
// from context when available, falling back to pool.Acquire.
func (a *AuditLogger) Record(ctx context.Context, entry *AccessEntry) error {
	if entry.AccessedAt.IsZero() {
		entry.AccessedAt = time.Now().UTC()
	}
	entry.ID = uuid.New()

	if a.pool == nil {
		a.logger.Info().
			Str("user_id", entry.UserID).
			Str("actor_id", entry.ActorID).
			Bool("impersonation", entry.Impersonation).
			Str("resource", entry.ResourceType).
			Str("action", entry.Action).
			Msg("phi access")
		return nil
	}

	const query = `
		INSERT INTO shared.phi_access_log (
			id, user_id, actor_id, impersonation, clinic_slug,
			resource_type, resource_id, action, path, method,
			ip_address, user_agent, request_id, status_code, accessed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	args := []any{
		entry.ID, entry.UserID, entry.ActorID, entry.Impersonation, entry.ClinicSlug,
		entry.ResourceType, entry.ResourceID, entry.Action, entry.Path, entry.Method,
		entry.IPAddress, entry.UserAgent, entry.RequestID, entry.StatusCode, entry.AccessedAt,
	}

	if conn := db.ConnFromContext(ctx); conn != nil {
		_, err := conn.Exec(ctx, query, args...)
		return err
	}

	poolConn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("phi audit: acquire connection: %w", err)
	}
	defer poolConn.Release()

	_, err = poolConn.Exec(ctx, query, args...)
	return err
}

// AuditMiddleware logs every request made by an impersonation session. Audit
// write failures never fail the request; they are logged and dropped.
func AuditMiddleware(audit *AuditLogger, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			ctx := c.Request().Context()
			if !auth.IsImpersonation(ctx) {
				return err
			}

			rid, _ := c.Get("request_id").(string)
			resourceType, resourceID := resourceFromPath(c.Request().URL.Path)
			entry := &AccessEntry{
				UserID:        auth.UserIDFromContext(ctx),
				ActorID:       auth.ActorIDFromContext(ctx),
				Impersonation: true,
				ClinicSlug:    db.ClinicFromContext(ctx),
				ResourceType:  resourceType,
				ResourceID:    resourceID,
				Action:        actionFromMethod(c.Request().Method, resourceID),
				Path:          c.Request().URL.Path,
				Method:        c.Request().Method,
				IPAddress:     c.RealIP(),
				UserAgent:     c.Request().UserAgent(),
				RequestID:     rid,
				StatusCode:    c.Response().Status,
			}

			if aerr := audit.Record(ctx, entry); aerr != nil {
				logger.Error().Err(aerr).Str("request_id", rid).Msg("failed to record phi access")
			}

			return err
		}
	}
}

// resourceFromPath extracts the resource type and id from an /api/v1 path,
// e.g. /api/v1/patients/123 -> ("patients", "123").
func resourceFromPath(path string) (string, string) {
	const prefix = "/api/v1/"
	if !strings.HasPrefix(path, prefix) {
		return "", ""
	}
	parts := strings.SplitN(path[len(prefix):], "/", 3)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[1]
	}
}

func actionFromMethod(method, resourceID string) string {
	switch method {
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		if resourceID == "" {
			return "list"
		}
		return "read"
	}
}
