// Package api 本地控制面HTTP接口：连接管理、收发控制与状态查询
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/pubsub"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"go.uber.org/zap"
)

// Bridge 连接与收发边界（usbcan.Bridge）
type Bridge interface {
	State() usbcan.ConnState
	Generation() uint64
	Receiving() bool
	Connect(ctx context.Context) usbcan.Result[usbcan.ConnState]
	PermissionGranted(dev usbcan.Device, granted bool) usbcan.Result[usbcan.ConnState]
	Disconnect() usbcan.Result[usbcan.ConnState]
	StartReceiving(ctx context.Context) usbcan.Result[usbcan.Unit]
	StopReceiving() usbcan.Result[usbcan.Unit]
	SendPacket(ctx context.Context, id [4]byte, cmd byte, data []byte) usbcan.Result[usbcan.Unit]
	SendAxisLimit(ctx context.Context, id int32, cmd byte, axis, axisMax, axisMin int) usbcan.Result[usbcan.Unit]
	LimiterStats() usbcan.SendLimiterStats
	Frames() *pubsub.Bus[usbcan.FrameResult]
}

// LatestFrame 最近一帧来源（gateway.Pump）
type LatestFrame interface {
	Latest() (*canusb.Frame, time.Time, bool)
}

// PMSnapshot PM缓存来源（pmfilter.Filter）
type PMSnapshot interface {
	Snapshot() map[string]int
}

// Handler 控制面处理器
type Handler struct {
	bridge Bridge
	latest LatestFrame
	pm     PMSnapshot
	logger *zap.Logger

	// OnGrant 授权通过前调用（回放驱动模拟宿主授权）
	OnGrant func()
}

// NewHandler 创建处理器
func NewHandler(bridge Bridge, latest LatestFrame, pm PMSnapshot, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bridge: bridge, latest: latest, pm: pm, logger: logger}
}

// StandardResponse 标准响应格式
type StandardResponse struct {
	Code      int         `json:"code"`           // 0=成功, >0=错误码
	Message   string      `json:"message"`        // 消息
	Data      interface{} `json:"data,omitempty"` // 业务数据
	RequestID string      `json:"request_id"`     // 请求追踪ID
	Timestamp int64       `json:"timestamp"`      // 时间戳
}

// ConnectionStatus 连接状态
type ConnectionStatus struct {
	State       string                            `json:"state"`
	Generation  uint64                            `json:"generation"`
	Receiving   bool                              `json:"receiving"`
	Limiter     usbcan.SendLimiterStats           `json:"limiter"`
	Subscribers map[string]pubsub.SubscriberStats `json:"subscribers"`
}

// SendFrameRequest 发送帧请求；data 为十六进制字符串
type SendFrameRequest struct {
	ID   int32  `json:"id" binding:"min=0"`
	Cmd  uint8  `json:"cmd"`
	Data string `json:"data"`
}

// AxisLimitRequest 轴限位设置
type AxisLimitRequest struct {
	ID   int32 `json:"id" binding:"min=0"`
	Cmd  uint8 `json:"cmd"`
	Axis int   `json:"axis" binding:"min=0,max=255"`
	Max  int   `json:"max" binding:"min=0,max=65535"`
	Min  int   `json:"min" binding:"min=0,max=65535"`
}

// PermissionRequest 宿主授权结果
type PermissionRequest struct {
	Granted bool `json:"granted"`
}

// FrameView 帧的JSON表示
type FrameView struct {
	ID         int32     `json:"id"`
	IDHex      string    `json:"id_hex"`
	Cmd        uint8     `json:"cmd"`
	Command    string    `json:"command"`
	DLC        uint8     `json:"dlc"`
	Data       string    `json:"data"`
	Collimator bool      `json:"collimator"`
	ReceivedAt time.Time `json:"received_at"`
}

func (h *Handler) status() ConnectionStatus {
	return ConnectionStatus{
		State:       h.bridge.State().String(),
		Generation:  h.bridge.Generation(),
		Receiving:   h.bridge.Receiving(),
		Limiter:     h.bridge.LimiterStats(),
		Subscribers: h.bridge.Frames().Stats(),
	}
}

// GetConnection 查询连接状态
// @Summary 查询连接状态
// @Tags 连接管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse
// @Router /connection [get]
func (h *Handler) GetConnection(c *gin.Context) {
	h.respondOK(c, h.status())
}

// Connect 连接转换器；需要宿主授权时返回 202
// @Summary 连接转换器
// @Description 设备未授权时进入等待授权状态并返回 202
// @Tags 连接管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse "已连接"
// @Success 202 {object} StandardResponse "等待宿主授权"
// @Failure 404 {object} StandardResponse "未找到设备"
// @Failure 502 {object} StandardResponse "端点不可用"
// @Router /connection [post]
func (h *Handler) Connect(c *gin.Context) {
	res := h.bridge.Connect(c.Request.Context())
	h.respondConn(c, "connect", res)
}

// Permission 提交宿主授权结果
// @Summary 提交宿主授权结果
// @Tags 连接管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body PermissionRequest true "授权结果"
// @Success 200 {object} StandardResponse "已连接"
// @Success 202 {object} StandardResponse "仍在等待授权"
// @Failure 400 {object} StandardResponse "请求无效"
// @Router /connection/permission [post]
func (h *Handler) Permission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, fmt.Sprintf("无效的请求: %v", err))
		return
	}
	if req.Granted && h.OnGrant != nil {
		h.OnGrant()
	}
	res := h.bridge.PermissionGranted(nil, req.Granted)
	h.respondConn(c, "permission", res)
}

// Disconnect 断开连接（先停止接收）
// @Summary 断开连接
// @Tags 连接管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse
// @Router /connection [delete]
func (h *Handler) Disconnect(c *gin.Context) {
	res := h.bridge.Disconnect()
	h.respondConn(c, "disconnect", res)
}

// StartReceiving 启动接收循环
// @Summary 启动接收循环
// @Tags 接收循环
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse
// @Failure 409 {object} StandardResponse "未连接"
// @Router /receiver/start [post]
func (h *Handler) StartReceiving(c *gin.Context) {
	res := h.bridge.StartReceiving(c.Request.Context())
	if !res.OK() {
		h.respondError(c, statusFor(res.Err), res.Err.Error())
		return
	}
	h.logger.Info("receive loop started via api", zap.Uint64("generation", h.bridge.Generation()))
	h.respondOK(c, h.status())
}

// StopReceiving 停止接收循环
// @Summary 停止接收循环
// @Tags 接收循环
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse
// @Router /receiver/stop [post]
func (h *Handler) StopReceiving(c *gin.Context) {
	h.bridge.StopReceiving()
	h.respondOK(c, h.status())
}

// SendFrame 编码并发送一帧
// @Summary 编码并发送一帧
// @Tags 下行
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SendFrameRequest true "帧ID、命令与十六进制数据"
// @Success 200 {object} StandardResponse
// @Failure 400 {object} StandardResponse "数据无效或过长"
// @Failure 409 {object} StandardResponse "未连接"
// @Router /frames [post]
func (h *Handler) SendFrame(c *gin.Context) {
	var req SendFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, fmt.Sprintf("无效的请求: %v", err))
		return
	}
	data, err := canusb.ParseHex(req.Data)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, fmt.Sprintf("data 不是有效的十六进制: %v", err))
		return
	}
	res := h.bridge.SendPacket(c.Request.Context(), canusb.IDBytes(req.ID), req.Cmd, data)
	if !res.OK() {
		h.respondError(c, statusFor(res.Err), res.Err.Error())
		return
	}
	h.respondOK(c, gin.H{"id": req.ID, "cmd": req.Cmd, "data": canusb.HexString(data)})
}

// SendAxisLimit 发送轴限位
// @Summary 发送轴限位
// @Tags 下行
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body AxisLimitRequest true "轴号与上下限"
// @Success 200 {object} StandardResponse
// @Failure 409 {object} StandardResponse "未连接"
// @Router /axis-limits [post]
func (h *Handler) SendAxisLimit(c *gin.Context) {
	var req AxisLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, fmt.Sprintf("无效的请求: %v", err))
		return
	}
	res := h.bridge.SendAxisLimit(c.Request.Context(), req.ID, req.Cmd, req.Axis, req.Max, req.Min)
	if !res.OK() {
		h.respondError(c, statusFor(res.Err), res.Err.Error())
		return
	}
	h.respondOK(c, req)
}

// LatestFrame 最近一条解码成功的帧
// @Summary 最近一条解码成功的帧
// @Tags 查询
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} FrameView
// @Failure 404 {object} StandardResponse "尚未收到帧"
// @Router /frames/latest [get]
func (h *Handler) LatestFrame(c *gin.Context) {
	f, at, ok := h.latest.Latest()
	if !ok {
		h.respondError(c, http.StatusNotFound, "尚未收到任何帧")
		return
	}
	h.respondOK(c, FrameView{
		ID:         f.ID,
		IDHex:      fmt.Sprintf("0x%X", f.ID),
		Cmd:        f.Cmd,
		Command:    f.Command().String(),
		DLC:        f.DLC,
		Data:       canusb.HexString(f.Payload()),
		Collimator: f.Collimator(),
		ReceivedAt: at,
	})
}

// PMValues 当前PM缓存
// @Summary 当前PM缓存
// @Tags 查询
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]int "槽位名到数值"
// @Router /pm [get]
func (h *Handler) PMValues(c *gin.Context) {
	h.respondOK(c, h.pm.Snapshot())
}

func (h *Handler) respondConn(c *gin.Context, op string, res usbcan.Result[usbcan.ConnState]) {
	switch res.Status {
	case usbcan.StatusSuccess:
		h.respondOK(c, h.status())
	case usbcan.StatusLoading:
		c.JSON(http.StatusAccepted, StandardResponse{
			Code:      0,
			Message:   "等待宿主授权",
			Data:      h.status(),
			RequestID: c.GetString("request_id"),
			Timestamp: time.Now().Unix(),
		})
	default:
		h.logger.Warn("connection op failed", zap.String("op", op), zap.Error(res.Err))
		h.respondError(c, statusFor(res.Err), res.Err.Error())
	}
}

// statusFor 错误到HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, usbcan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usbcan.ErrNotConnected), errors.Is(err, usbcan.ErrPermissionPending):
		return http.StatusConflict
	case canusb.IsEncodingError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case usbcan.IsTransportError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, StandardResponse{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().Unix(),
	})
}

func (h *Handler) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, StandardResponse{
		Code:      status,
		Message:   message,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().Unix(),
	})
}
