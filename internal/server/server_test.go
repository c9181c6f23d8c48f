package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/scanner"
	"github.com/alanyoungcy/triarb/internal/server/handler"
)

type fakeStatus struct{ st scanner.Status }

func (f fakeStatus) Status() scanner.Status { return f.st }

type fakeTrigger struct {
	err   error
	calls int
}

func (f *fakeTrigger) TriggerScan() error {
	f.calls++
	return f.err
}

type fakeFeed struct {
	opps []domain.Opportunity
	err  error
}

func (f fakeFeed) Recent(_ context.Context, count int64) ([]domain.Opportunity, error) {
	if int64(len(f.opps)) > count {
		return f.opps[:count], f.err
	}
	return f.opps, f.err
}

func newTestServer(t *testing.T, apiKey string, trig *fakeTrigger, feed handler.OpportunityFeed) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st := scanner.Status{Cycles: 3, Skipped: 2, HighProfit: 1, Outcomes: map[string]int64{"accepted": 1}}
	h := Handlers{
		Health:        handler.NewHealthHandler(),
		Status:        handler.NewStatusHandler("server", fakeStatus{st: st}),
		Scan:          handler.NewScanHandler(trig, logger),
		Opportunities: handler.NewOpportunityHandler(feed, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("triarb_cycles_total 3\n"))
		}),
	}
	return NewServer(Config{Port: 0, APIKey: apiKey}, h, logger).httpServer.Handler
}

func do(h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, "secret", &fakeTrigger{}, nil)
	rec := do(h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is public")
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_Status(t *testing.T) {
	h := newTestServer(t, "", &fakeTrigger{}, nil)
	rec := do(h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "server", body["mode"])
	assert.EqualValues(t, 3, body["cycles"])
	assert.EqualValues(t, 2, body["skipped"])
	assert.EqualValues(t, 1, body["high_profit"])
}

func TestServer_Scan_Accepted(t *testing.T) {
	trig := &fakeTrigger{}
	h := newTestServer(t, "", trig, nil)
	rec := do(h, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, trig.calls)
}

func TestServer_Scan_Conflict(t *testing.T) {
	h := newTestServer(t, "", &fakeTrigger{err: domain.ErrScanInProgress}, nil)
	rec := do(h, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Scan_Failure(t *testing.T) {
	h := newTestServer(t, "", &fakeTrigger{err: errors.New("boom")}, nil)
	rec := do(h, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Scan_WrongMethod(t *testing.T) {
	h := newTestServer(t, "", &fakeTrigger{}, nil)
	rec := do(h, http.MethodGet, "/api/scan", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Auth(t *testing.T) {
	trig := &fakeTrigger{}
	h := newTestServer(t, "secret", trig, nil)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/api/scan", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/metrics", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/api/scan", map[string]string{"Authorization": "Bearer secret"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, 1, trig.calls)
}

func TestServer_Opportunities(t *testing.T) {
	feed := fakeFeed{opps: []domain.Opportunity{
		{Key: "A-B-C", Venue: "0xR", NetProfit: decimal.NewFromInt(3), DetectedAt: time.Unix(0, 0).UTC()},
		{Key: "A-C-B", Venue: "0xR", NetProfit: decimal.NewFromInt(1)},
	}}
	h := newTestServer(t, "", &fakeTrigger{}, feed)

	rec := do(h, http.MethodGet, "/api/opportunities/recent?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Opportunities, 1)
	assert.Equal(t, "A-B-C", body.Opportunities[0].Key)
}

func TestServer_Opportunities_NoFeed(t *testing.T) {
	h := newTestServer(t, "", &fakeTrigger{}, nil)
	rec := do(h, http.MethodGet, "/api/opportunities/recent", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
