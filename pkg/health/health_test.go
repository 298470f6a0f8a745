package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upCheck(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusUp}
}

func downCheck(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusDown, Message: "unreachable"}
}

func TestCheckerAllUp(t *testing.T) {
	c := NewChecker()
	c.Register("storage", upCheck)
	c.Register("cache", upCheck)

	report := c.Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	require.Len(t, report.Components, 2)
	assert.Equal(t, StatusUp, report.Components["storage"].Status)
	assert.NotEmpty(t, report.Components["storage"].Latency)
}

func TestCheckerAggregatesDown(t *testing.T) {
	c := NewChecker()
	c.Register("storage", upCheck)
	c.Register("cache", downCheck)

	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "unreachable", report.Components["cache"].Message)
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	c := NewChecker()
	c.Register("storage", upCheck)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("cache", downCheck)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	c := NewChecker()
	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
