package thirdparty

import (
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	// EventPMChanged PM值有效变化
	EventPMChanged EventType = "pm.changed"

	// EventFrameReceived 非PM帧（按键、状态等）已解码
	EventFrameReceived EventType = "frame.received"

	// EventFrameDecodeError 数据块解码失败
	EventFrameDecodeError EventType = "frame.decode_error"

	// EventConnectionChanged 转换器连接状态变化
	EventConnectionChanged EventType = "connection.changed"

	// EventKeyPressed 按键（设备按键、遥控器、脚踏）
	EventKeyPressed EventType = "key.pressed"

	// EventCollimatorData 限束器数据
	EventCollimatorData EventType = "collimator.data"
)

// Event 标准事件结构
type Event struct {
	EventID    string         `json:"event_id"`              // 事件唯一ID（用于去重）
	EventType  EventType      `json:"event_type"`            // 事件类型
	DeviceType string         `json:"device_type,omitempty"` // 设备类型名称
	Timestamp  int64          `json:"timestamp"`             // 事件时间戳（Unix毫秒）
	Data       map[string]any `json:"data"`
}

// NewEvent 创建标准事件
func NewEvent(eventType EventType, deviceType string, data map[string]any) *Event {
	return &Event{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		DeviceType: deviceType,
		Timestamp:  time.Now().UnixMilli(),
		Data:       data,
	}
}
