package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limjaehoe/elincan/internal/usbcan"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator(t *testing.T) {
	tests := []struct {
		name   string
		checks []Checker
		want   Status
		ready  bool
	}{
		{"全部健康", []Checker{&mockChecker{"usb", StatusHealthy}, &mockChecker{"redis", StatusHealthy}}, StatusHealthy, true},
		{"部分降级", []Checker{&mockChecker{"usb", StatusHealthy}, &mockChecker{"redis", StatusDegraded}}, StatusDegraded, true},
		{"部分不健康", []Checker{&mockChecker{"usb", StatusUnhealthy}, &mockChecker{"redis", StatusDegraded}}, StatusUnhealthy, false},
		{"无检查器", nil, StatusHealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.checks...)
			assert.Equal(t, tt.want, agg.OverallStatus(context.Background()))
			assert.Equal(t, tt.ready, agg.Ready(context.Background()))
			assert.True(t, agg.Alive())
		})
	}

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})
		assert.Len(t, agg.CheckAll(context.Background()), 2)
	})
}

func TestWorse(t *testing.T) {
	assert.Equal(t, StatusDegraded, Worse(StatusHealthy, StatusDegraded))
	assert.Equal(t, StatusUnhealthy, Worse(StatusUnhealthy, StatusDegraded))
	assert.Equal(t, StatusHealthy, Worse(StatusHealthy, StatusHealthy))
	assert.Equal(t, StatusUnhealthy, Worse(StatusHealthy, Status("bogus")), "unknown counts as unhealthy")
}

type fakeUSB struct {
	state     usbcan.ConnState
	receiving bool
}

func (f fakeUSB) State() usbcan.ConnState { return f.state }
func (f fakeUSB) Generation() uint64      { return 3 }
func (f fakeUSB) Receiving() bool         { return f.receiving }

func TestUSBChecker(t *testing.T) {
	tests := []struct {
		name string
		usb  fakeUSB
		want Status
	}{
		{"接收中", fakeUSB{usbcan.StateConnected, true}, StatusHealthy},
		{"未接收", fakeUSB{usbcan.StateConnected, false}, StatusDegraded},
		{"等待授权", fakeUSB{usbcan.StatePermissionPending, false}, StatusDegraded},
		{"断开", fakeUSB{usbcan.StateDisconnected, false}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewUSBChecker(tt.usb).Check(context.Background())
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, uint64(3), res.Details["generation"])
		})
	}
}

type redisAdapter struct{ *goredis.Client }

func (r redisAdapter) HealthCheck(ctx context.Context) error { return r.Ping(ctx).Err() }
func (r redisAdapter) Stats() *goredis.PoolStats             { return r.PoolStats() }
func (r redisAdapter) Backlog(ctx context.Context) (int64, error) {
	return r.LLen(ctx, "elincan:events").Result()
}

func TestRedisChecker(t *testing.T) {
	m := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	defer rdb.Close()

	c := NewRedisChecker(redisAdapter{rdb})
	assert.Equal(t, "redis", c.Name())
	require.NoError(t, rdb.RPush(context.Background(), "elincan:events", "e1").Err())
	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, int64(1), res.Details["event_backlog"])

	require.NoError(t, rdb.Set(context.Background(), "elincan:events", "x", 0).Err())
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status, "wrong key type")

	m.Close()
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
}

type fakeMQTT bool

func (f fakeMQTT) IsConnectionOpen() bool { return bool(f) }

func TestMQTTChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewMQTTChecker(fakeMQTT(true)).Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewMQTTChecker(fakeMQTT(false)).Check(context.Background()).Status)
}

func TestReadiness(t *testing.T) {
	r := NewReadiness(NewAggregator(&mockChecker{"usb", StatusHealthy}))
	assert.False(t, r.Ready())
	r.MarkStarted()
	assert.True(t, r.Ready())

	r = NewReadiness(NewAggregator(&mockChecker{"usb", StatusUnhealthy}))
	r.MarkStarted()
	assert.False(t, r.Ready())
}

func TestHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHTTPRoutes(r, NewAggregator(&mockChecker{"usb", StatusDegraded}))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Checks, "usb")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
