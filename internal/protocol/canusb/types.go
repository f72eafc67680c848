package canusb

import "fmt"

// DeviceType 轴子系统类型
type DeviceType int

const (
	DeviceUnknown    DeviceType = 0
	DeviceCeiling    DeviceType = 1 // 天轨
	DeviceStand      DeviceType = 2 // 立柱
	DeviceTable      DeviceType = 3 // 床台
	DeviceCollimator DeviceType = 4 // 限束器
	DeviceZigbee     DeviceType = 5
)

var deviceNames = map[DeviceType]string{
	DeviceUnknown:    "unknown",
	DeviceCeiling:    "ceiling",
	DeviceStand:      "stand",
	DeviceTable:      "table",
	DeviceCollimator: "collimator",
	DeviceZigbee:     "zigbee",
}

// DeviceTypeFromValue 整数到设备类型的全映射，未知值返回 DeviceUnknown
func DeviceTypeFromValue(v int) DeviceType {
	d := DeviceType(v)
	if _, ok := deviceNames[d]; ok {
		return d
	}
	return DeviceUnknown
}

// ParseDeviceType 按名称解析（配置与API使用）
func ParseDeviceType(name string) (DeviceType, error) {
	for d, n := range deviceNames {
		if n == name {
			return d, nil
		}
	}
	return DeviceUnknown, fmt.Errorf("unknown device type %q", name)
}

func (d DeviceType) String() string {
	if n, ok := deviceNames[d]; ok {
		return n
	}
	return deviceNames[DeviceUnknown]
}

// MarshalText JSON/YAML 中以名称输出
func (d DeviceType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 按名称解析
func (d *DeviceType) UnmarshalText(b []byte) error {
	v, err := ParseDeviceType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Command 命令码
type Command int

const (
	CmdUnknown        Command = -1
	CmdStatusData     Command = 0x00
	CmdPMValue        Command = 0x02
	CmdKeyValue       Command = 0x03
	CmdStopPMValue    Command = 0x06
	CmdMotorStatus    Command = 0x08
	CmdSensorStatus   Command = 0x09
	CmdZigbeeKeyValue Command = 0x0A
	CmdVersionInfo    Command = 0x3E
)

var commandNames = map[Command]string{
	CmdUnknown:        "unknown",
	CmdStatusData:     "status_data",
	CmdPMValue:        "pm_value",
	CmdKeyValue:       "key_value",
	CmdStopPMValue:    "stop_pm_value",
	CmdMotorStatus:    "motor_status",
	CmdSensorStatus:   "sensor_status",
	CmdZigbeeKeyValue: "zigbee_key_value",
	CmdVersionInfo:    "version_info",
}

// CommandFromValue 精确匹配，未匹配返回 CmdUnknown
func CommandFromValue(v int) Command {
	c := Command(v)
	if _, ok := commandNames[c]; ok {
		return c
	}
	return CmdUnknown
}

// IsPM PM值或停止PM值
func (c Command) IsPM() bool {
	return c == CmdPMValue || c == CmdStopPMValue
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return commandNames[CmdUnknown]
}
