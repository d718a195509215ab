package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/pkg/respond"
)

const (
	// MaxBodyBytes caps webhook payload size.
	MaxBodyBytes = 1 << 20

	// DedupTTL is how long processed event ids are remembered.
	DedupTTL = 24 * time.Hour
)

// Receiver is the HTTP ingestion endpoint for payment provider webhooks.
// Every request is verified against the shared signing secret before the
// body is parsed; duplicate event ids are acknowledged without reprocessing.
type Receiver struct {
	secret     string
	dedup      DedupStore
	dispatcher *Dispatcher
	logger     zerolog.Logger
	tolerance  time.Duration
}

func NewReceiver(secret string, dedup DedupStore, dispatcher *Dispatcher, logger zerolog.Logger) *Receiver {
	return &Receiver{
		secret:     secret,
		dedup:      dedup,
		dispatcher: dispatcher,
		logger:     logger,
		tolerance:  DefaultTolerance,
	}
}

// Register mounts the webhook routes. The route sits outside the
// authenticated API group: callers authenticate by signature, not by JWT.
func (r *Receiver) Register(g *echo.Group) {
	g.POST("/payments", r.Handle)
}

func (r *Receiver) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
	}

	sig := c.Request().Header.Get(SignatureHeader)
	if sig == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing webhook signature")
	}
	if err := VerifySignature(body, r.secret, sig, r.tolerance, time.Now()); err != nil {
		r.logger.Warn().Err(err).Msg("webhook: signature verification failed")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
	}
	if evt.ID == "" || evt.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "event id and type are required")
	}

	ctx := c.Request().Context()
	first, err := r.dedup.MarkProcessed(ctx, evt.ID, DedupTTL)
	if err != nil {
		r.logger.Error().Err(err).Str("event_id", evt.ID).Msg("webhook: dedup store unavailable")
		return echo.NewHTTPError(http.StatusInternalServerError, "event store unavailable")
	}
	if !first {
		r.logger.Info().Str("event_id", evt.ID).Msg("webhook: duplicate event acknowledged")
		return respond.Message(c, "duplicate event")
	}

	if err := r.dispatcher.Dispatch(ctx, evt); err != nil {
		r.logger.Error().Err(err).
			Str("event_id", evt.ID).
			Str("event_type", evt.Type).
			Msg("webhook: handler failed")
		// Non-2xx so the provider retries; dedup claim is best-effort released
		// by TTL expiry rather than explicit rollback.
		return echo.NewHTTPError(http.StatusInternalServerError, "event processing failed")
	}

	return respond.Message(c, "event processed")
}
