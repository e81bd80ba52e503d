package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingCheckStatuses(t *testing.T) {
	ctx := context.Background()

	ok := NewPingCheck("graph", func(context.Context) error { return nil }, time.Second)
	res := ok.Check(ctx)
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Empty(t, res.Error)

	failing := NewPingCheck("events", func(context.Context) error {
		return errors.New("broker unreachable")
	}, time.Second)
	res = failing.Check(ctx)
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "broker unreachable", res.Error)

	sluggish := NewPingCheck("knowledge", func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}, time.Nanosecond)
	res = sluggish.Check(ctx)
	assert.Equal(t, StatusDegraded, res.Status)
}

func TestOverallStatusPrecedence(t *testing.T) {
	hc := NewHealthChecker()

	assert.Equal(t, StatusHealthy, hc.OverallStatus(map[string]HealthResult{
		"a": {Status: StatusHealthy},
		"b": {Status: StatusHealthy},
	}))
	assert.Equal(t, StatusDegraded, hc.OverallStatus(map[string]HealthResult{
		"a": {Status: StatusHealthy},
		"b": {Status: StatusDegraded},
	}))
	assert.Equal(t, StatusUnhealthy, hc.OverallStatus(map[string]HealthResult{
		"a": {Status: StatusDegraded},
		"b": {Status: StatusUnhealthy},
	}))
}

func TestCheckRunsAllRegisteredChecks(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register(NewPingCheck("graph", func(context.Context) error { return nil }, time.Second))
	hc.Register(NewPingCheck("archive", func(context.Context) error { return errors.New("boom") }, time.Second))

	results := hc.Check(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, StatusHealthy, results["graph"].Status)
	assert.Equal(t, StatusUnhealthy, results["archive"].Status)
}

func TestHTTPHandlerReports503WhenUnhealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register(NewPingCheck("graph", func(context.Context) error { return errors.New("down") }, time.Second))

	rec := httptest.NewRecorder()
	hc.HTTPHandler()(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, 503, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHTTPHandlerHealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register(NewPingCheck("graph", func(context.Context) error { return nil }, time.Second))

	rec := httptest.NewRecorder()
	hc.HTTPHandler()(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
