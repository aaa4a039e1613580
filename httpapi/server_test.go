package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/codetiger/processor/broker"
	"github.com/codetiger/processor/message"
	"github.com/codetiger/processor/opstate"
)

type fakeProducer struct {
	mu       sync.Mutex
	produced []broker.Record
	failWith error
}

func (f *fakeProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string][]byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.produced = append(f.produced, broker.Record{Topic: topic, Key: key, Value: value, Headers: headers})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestHandleIngestProducesMessageAndReturnsID(t *testing.T) {
	producer := &fakeProducer{}
	srv := NewServer(producer, "inbound", opstate.NewTracker(10), nil)

	body, err := json.Marshal(map[string]interface{}{
		"tenant": "tenant1",
		"origin": "api",
		"body":   []byte("<Document/>"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.MessageID)

	producer.mu.Lock()
	defer producer.mu.Unlock()
	require.Len(t, producer.produced, 1)
	assert.Equal(t, "inbound", producer.produced[0].Topic)
	assert.Equal(t, strconv.FormatInt(resp.MessageID, 10), string(producer.produced[0].Key))

	var msg message.Message
	require.NoError(t, json.Unmarshal(producer.produced[0].Value, &msg))
	assert.Equal(t, "tenant1", msg.Tenant)
	assert.Equal(t, "api", msg.Origin)
	assert.Equal(t, message.StorageInline, msg.Payload.Storage)
}

func TestHandleIngestRejectsMissingFields(t *testing.T) {
	producer := &fakeProducer{}
	srv := NewServer(producer, "inbound", nil, nil)

	body, err := json.Marshal(map[string]interface{}{"origin": "api"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ingestErrors
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "tenant is required")

	producer.mu.Lock()
	defer producer.mu.Unlock()
	assert.Empty(t, producer.produced)
}

func TestHandleIngestReturnsBadGatewayOnProduceFailure(t *testing.T) {
	producer := &fakeProducer{failWith: assert.AnError}
	srv := NewServer(producer, "inbound", nil, nil)

	body, err := json.Marshal(map[string]interface{}{
		"tenant": "tenant1",
		"origin": "api",
		"body":   []byte("<Document/>"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	srv := NewServer(&fakeProducer{}, "inbound", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseCarriesGeneratedRequestID(t *testing.T) {
	srv := NewServer(&fakeProducer{}, "inbound", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRateLimitMiddlewareRejectsOverBurst(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	mw := rateLimitMiddleware(limiter)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusAccepted) })

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)

	rec1 := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec1)))
	assert.Equal(t, http.StatusAccepted, rec1.Code)

	rec2 := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec2)))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}
