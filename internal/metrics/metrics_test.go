package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.USBFramesReceived.WithLabelValues(Result(nil)).Inc()
	m.USBFramesReceived.WithLabelValues(Result(errors.New("x"))).Add(2)
	m.USBState.Set(2)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `usbcan_frames_received_total{result="ok"} 1`)
	assert.Contains(t, body, `usbcan_frames_received_total{result="error"} 2`)
	assert.Contains(t, body, "usbcan_connection_state 2")
	assert.Contains(t, body, "go_goroutines")
}
