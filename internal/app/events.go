package app

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/metrics"
	redisstorage "github.com/limjaehoe/elincan/internal/storage/redis"
	"github.com/limjaehoe/elincan/internal/thirdparty"
	"go.uber.org/zap"
)

// NewEventFanout 按配置组装事件出口；均未启用时返回空扇出
// 返回的 mqtt.Client 供健康检查使用，未启用时为 nil。
func NewEventFanout(cfg *cfgpkg.Config, rdb *redisstorage.EventClient, appm *metrics.AppMetrics, logger *zap.Logger) (*thirdparty.Fanout, mqtt.Client, error) {
	var sinks []thirdparty.Publisher
	if rdb != nil {
		sinks = append(sinks, thirdparty.NewRedisPublisher(rdb.Client,
			rdb.EventList(), rdb.EventChannel(), rdb.MaxEvents(), logger.Named("redis")))
	}

	var mc mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := thirdparty.NewMQTTClient(cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			return nil, nil, err
		}
		mc = c
		sinks = append(sinks, thirdparty.NewMQTTPublisher(c, cfg.MQTT, logger.Named("mqtt")))
	}

	f := thirdparty.NewFanout(logger.Named("events"), sinks...)
	if appm != nil {
		f.OnResult = func(sink string, err error) {
			appm.EventsPublished.WithLabelValues(sink, metrics.Result(err)).Inc()
		}
	}
	logger.Info("event sinks configured", zap.Int("sinks", f.Sinks()))
	return f, mc, nil
}
