// Package httpapi implements the ingress HTTP surface described in
// SPEC_FULL.md §4.8: accept a raw message body, wrap it in a fresh Message
// tagged with a caller-supplied tenant/origin, and produce it to the
// configured input topic. It is grounded on the original processor's
// http/server.go and http/runner.go (echo.New, middleware.Logger/Recover,
// a Runner wrapping *echo.Echo with Start/Shutdown), adapted from that
// package's generic REST-resource routing to this system's single
// ingestion endpoint plus the opstate read-only routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/codetiger/processor/broker"
	"github.com/codetiger/processor/message"
	"github.com/codetiger/processor/opstate"
)

const produceAckTimeout = 5 * time.Second

// ingestRateLimit bounds sustained ingestion throughput; burst absorbs a
// short spike above the steady rate before requests start getting rejected.
const (
	ingestRateLimit = 50 // requests/second
	ingestBurst     = 100
)

// Server is the ingress HTTP server: one ingestion endpoint plus the
// opstate tracker's read-only routes.
type Server struct {
	echo     *echo.Echo
	producer broker.Producer
	topic    string
	tracker  *opstate.Tracker
	log      *logrus.Logger
}

// NewServer builds a Server. A nil tracker omits the /state routes.
func NewServer(producer broker.Producer, topic string, tracker *opstate.Tracker, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	s := &Server{echo: e, producer: producer, topic: topic, tracker: tracker, log: log}

	limiter := rate.NewLimiter(rate.Limit(ingestRateLimit), ingestBurst)
	e.POST("/v1/messages", s.handleIngest, rateLimitMiddleware(limiter))
	e.GET("/healthz", s.handleHealth)
	if tracker != nil {
		tracker.RegisterRoutes(e.Group("/v1/ops"))
	}

	return s
}

// Start blocks serving on addr until ctx is cancelled, then shuts down
// gracefully within 10 seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// rateLimitMiddleware enforces a process-wide token-bucket limit on the
// route it decorates, grounded on the teacher's middleware.RateLimiter
// usage in http/server.go but built directly on golang.org/x/time/rate
// rather than echo's Store abstraction, since this system needs only one
// shared limiter rather than a per-identity store.
func rateLimitMiddleware(limiter *rate.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				return c.JSON(http.StatusTooManyRequests, ingestErrors{Errors: []string{"rate limit exceeded"}})
			}
			return next(c)
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Tenant string `json:"tenant"`
	Origin string `json:"origin"`
	Body   []byte `json:"body"`
}

type ingestResponse struct {
	MessageID int64 `json:"message_id"`
}

type ingestErrors struct {
	Errors []string `json:"errors"`
}

// handleIngest implements SPEC_FULL.md §4.8's Ingress interface: construct
// an inline-XML ISO 20022 Payload from the request body, wrap it in a fresh
// Message, and produce it to the configured input topic, returning the
// Message id on produce-ack.
func (s *Server) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ingestErrors{Errors: []string{"malformed request body: " + err.Error()}})
	}

	var errs []string
	if req.Tenant == "" {
		errs = append(errs, "tenant is required")
	}
	if req.Origin == "" {
		errs = append(errs, "origin is required")
	}
	if len(req.Body) == 0 {
		errs = append(errs, "body is required")
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, ingestErrors{Errors: errs})
	}

	payload := message.NewInlinePayload(req.Body, message.FormatXML, message.SchemaISO20022, message.EncodingUTF8)
	msg := message.New(req.Tenant, req.Origin, payload, nil)

	out, err := json.Marshal(msg)
	if err != nil {
		s.log.WithError(err).Error("failed to serialise ingested message")
		return c.JSON(http.StatusInternalServerError, ingestErrors{Errors: []string{"internal error"}})
	}

	produceCtx, cancel := context.WithTimeout(c.Request().Context(), produceAckTimeout)
	defer cancel()

	key := []byte(strconv.FormatInt(msg.ID, 10))
	if err := s.producer.Produce(produceCtx, s.topic, key, out, map[string][]byte{}); err != nil {
		s.log.WithError(err).Error("produce failed for ingested message")
		return c.JSON(http.StatusBadGateway, ingestErrors{Errors: []string{"failed to publish message: " + err.Error()}})
	}

	return c.JSON(http.StatusOK, ingestResponse{MessageID: msg.ID})
}
