package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	USBFramesReceived *prometheus.CounterVec // labels: result=ok|error
	USBBytesReceived  prometheus.Counter
	USBReadErrors     prometheus.Counter
	USBFramesSent     *prometheus.CounterVec // labels: result=ok|error
	USBState          prometheus.Gauge       // 0=断开 1=等待授权 2=已连接
	USBGeneration     prometheus.Gauge       // 会话代数
	PMChangesTotal    *prometheus.CounterVec // labels: device
	DispatchTotal     *prometheus.CounterVec // labels: device, cmd
	BusDropsTotal     *prometheus.CounterVec // labels: subscriber
	EventsPublished   *prometheus.CounterVec // labels: sink, result
	Info              *prometheus.GaugeVec   // labels: app, env, driver, device；恒为 1
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		USBFramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbcan_frames_received_total",
			Help: "Decoded USB chunks by result.",
		}, []string{"result"}),
		USBBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "usbcan_bytes_received_total",
			Help: "Total bytes read from the IN endpoint.",
		}),
		USBReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "usbcan_read_errors_total",
			Help: "Transfer errors observed by the receive loop.",
		}),
		USBFramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbcan_frames_sent_total",
			Help: "Frames written to the OUT endpoint by result.",
		}, []string{"result"}),
		USBState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "usbcan_connection_state",
			Help: "Connection state (0 disconnected, 1 permission pending, 2 connected).",
		}),
		USBGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "usbcan_session_generation",
			Help: "Current USB session generation.",
		}),
		PMChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pm_changes_total",
			Help: "Significant PM changes by device type.",
		}, []string{"device"}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Dispatched packets by device type and command.",
		}, []string{"device", "cmd"}),
		BusDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frame_bus_drops_total",
			Help: "Frame results dropped because a subscriber buffer was full.",
		}, []string{"subscriber"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events published by sink and result.",
		}, []string{"sink", "result"}),
		Info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elincan_info",
			Help: "Service identity: driver and converter VID:PID.",
		}, []string{"app", "env", "driver", "device"}),
	}
	reg.MustRegister(
		m.USBFramesReceived, m.USBBytesReceived, m.USBReadErrors, m.USBFramesSent,
		m.USBState, m.USBGeneration, m.PMChangesTotal, m.DispatchTotal,
		m.BusDropsTotal, m.EventsPublished, m.Info,
	)
	return m
}

// Result 指标结果标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
