package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limjaehoe/elincan/internal/api/middleware"
	"github.com/limjaehoe/elincan/internal/dispatch"
	"github.com/limjaehoe/elincan/internal/gateway"
	"github.com/limjaehoe/elincan/internal/pmfilter"
	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"github.com/limjaehoe/elincan/internal/usbcan/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router *gin.Engine
	bridge *usbcan.Bridge
	drv    *replay.Driver
	filter *pmfilter.Filter
}

func chunkHex(t *testing.T, id int32, cmd byte, data ...byte) string {
	t.Helper()
	buf, err := canusb.Encode(canusb.IDBytes(id), cmd, data)
	require.NoError(t, err)
	return canusb.HexString(buf[:])
}

func newTestEnv(t *testing.T, authorized bool, chunks ...string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	drv := replay.New(&replay.Trace{Authorized: authorized, Chunks: chunks})
	opts := usbcan.DefaultOptions()
	opts.PollTimeout = 5 * time.Millisecond
	opts.SendInterval = 0
	bridge := usbcan.NewBridge(drv, nil, opts, zap.NewNop())

	disp := dispatch.New(zap.NewNop())
	filter := pmfilter.New(disp, zap.NewNop())
	pump := gateway.NewPump(dispatch.NewResolver(nil), disp, filter, nil, nil, zap.NewNop())

	sub, err := bridge.Subscribe("pump", 16)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pump.Run(ctx, sub)
	}()
	t.Cleanup(func() {
		bridge.Cleanup()
		cancel()
		<-done
		filter.Close()
	})

	h := NewHandler(bridge, pump, filter, zap.NewNop())
	h.OnGrant = drv.Grant
	r := gin.New()
	RegisterRoutes(r, h, middleware.AuthConfig{}, zap.NewNop())
	return &testEnv{router: r, bridge: bridge, drv: drv, filter: filter}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, StandardResponse) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp StandardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func dataField(t *testing.T, resp StandardResponse, key string) any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m[key]
}

func TestConnectionLifecycle(t *testing.T) {
	e := newTestEnv(t, true)

	code, resp := e.do(t, http.MethodGet, "/api/v1/connection", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disconnected", dataField(t, resp, "state"))
	assert.NotEmpty(t, resp.RequestID)

	code, resp = e.do(t, http.MethodPost, "/api/v1/connection", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connected", dataField(t, resp, "state"))
	assert.Equal(t, float64(1), dataField(t, resp, "generation"))

	code, resp = e.do(t, http.MethodDelete, "/api/v1/connection", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disconnected", dataField(t, resp, "state"))
}

func TestPermissionFlow(t *testing.T) {
	e := newTestEnv(t, false)

	code, resp := e.do(t, http.MethodPost, "/api/v1/connection", nil)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "permission_pending", dataField(t, resp, "state"))

	code, _ = e.do(t, http.MethodPost, "/api/v1/connection/permission", PermissionRequest{Granted: false})
	assert.Equal(t, http.StatusAccepted, code, "denial keeps waiting")

	code, resp = e.do(t, http.MethodPost, "/api/v1/connection/permission", PermissionRequest{Granted: true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connected", dataField(t, resp, "state"))
}

func TestReceiverRequiresConnection(t *testing.T) {
	e := newTestEnv(t, true)
	code, resp := e.do(t, http.MethodPost, "/api/v1/receiver/start", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestReceiveAndQuery(t *testing.T) {
	e := newTestEnv(t, true,
		chunkHex(t, dispatch.DefaultCeilingID, 0x02, 0x02, 0x01, 0x00),
		chunkHex(t, dispatch.DefaultCeilingID, 0x08, 0x07),
	)

	code, _ := e.do(t, http.MethodGet, "/api/v1/frames/latest", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodPost, "/api/v1/connection", nil)
	require.Equal(t, http.StatusOK, code)
	code, resp := e.do(t, http.MethodPost, "/api/v1/receiver/start", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, dataField(t, resp, "receiving"))

	require.Eventually(t, func() bool {
		code, resp := e.do(t, http.MethodGet, "/api/v1/frames/latest", nil)
		return code == http.StatusOK && dataField(t, resp, "command") == "motor_status"
	}, time.Second, 10*time.Millisecond)

	_, resp = e.do(t, http.MethodGet, "/api/v1/frames/latest", nil)
	assert.Equal(t, "0x40", dataField(t, resp, "id_hex"))
	assert.Equal(t, "07", dataField(t, resp, "data"))

	_, resp = e.do(t, http.MethodGet, "/api/v1/pm", nil)
	assert.Equal(t, float64(256), dataField(t, resp, "ceiling.y"))

	code, resp = e.do(t, http.MethodPost, "/api/v1/receiver/stop", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, dataField(t, resp, "receiving"))
}

func TestSendFrame(t *testing.T) {
	e := newTestEnv(t, true)

	code, _ := e.do(t, http.MethodPost, "/api/v1/frames", SendFrameRequest{ID: 0x40, Cmd: 0x05, Data: "0102"})
	assert.Equal(t, http.StatusConflict, code, "not connected")

	code, _ = e.do(t, http.MethodPost, "/api/v1/connection", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := e.do(t, http.MethodPost, "/api/v1/frames", SendFrameRequest{ID: 0x40, Cmd: 0x05, Data: "01 02"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "01 02", dataField(t, resp, "data"))

	code, _ = e.do(t, http.MethodPost, "/api/v1/frames", SendFrameRequest{ID: 0x40, Cmd: 0x05, Data: "zz"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPost, "/api/v1/frames", SendFrameRequest{ID: 0x40, Cmd: 0x05, Data: "00112233445566778899"})
	assert.Equal(t, http.StatusBadRequest, code, "payload too large")

	code, _ = e.do(t, http.MethodPost, "/api/v1/axis-limits", AxisLimitRequest{ID: 0x40, Cmd: 0x10, Axis: 1, Max: 1000, Min: 10})
	assert.Equal(t, http.StatusOK, code)

	written := e.drv.Written()
	require.Len(t, written, 2)
	assert.Equal(t, []byte{0x05, 0x01, 0x02}, written[0][10:13])
	assert.Equal(t, []byte{0x01, 0x03, 0xE8, 0x00, 0x00, 0x0A}, written[1][11:17])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(usbcan.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(usbcan.ErrNotConnected))
	assert.Equal(t, http.StatusBadRequest, statusFor(canusb.ErrPayloadTooLarge))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, statusFor(usbcan.ErrTransferFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
