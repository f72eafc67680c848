package thirdparty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	cfgpkg "github.com/limjaehoe/elincan/internal/config"
)

// ErrPublishTimeout 在超时内未收到 broker 确认
var ErrPublishTimeout = errors.New("mqtt publish timeout")

// MQTTClient paho mqtt.Client 的子集
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// NewMQTTClient 连接 broker，自动重连
func NewMQTTClient(cfg cfgpkg.MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(time.Second)
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// MQTTPublisher 事件发布到 <prefix>/<event_type>
type MQTTPublisher struct {
	client   MQTTClient
	prefix   string
	qos      byte
	retained bool
	timeout  time.Duration
	logger   *zap.Logger
}

// NewMQTTPublisher 创建 MQTT 出口
func NewMQTTPublisher(client MQTTClient, cfg cfgpkg.MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTPublisher{
		client:   client,
		prefix:   cfg.TopicPrefix,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  timeout,
		logger:   logger,
	}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic 事件对应的主题
func (p *MQTTPublisher) Topic(t EventType) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "/" + string(t)
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	tok := p.client.Publish(p.Topic(ev.EventType), p.qos, p.retained, data)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	return tok.Error()
}

// Close 断开 broker 连接
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
