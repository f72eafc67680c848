package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Swagger      bool          `mapstructure:"swagger"` // 挂载 /swagger/*any
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// USBConfig CAN-USB 转换器配置
type USBConfig struct {
	Driver       string        `mapstructure:"driver"` // libusb | replay
	ReplayPath   string        `mapstructure:"replayPath"`
	VendorID     uint16        `mapstructure:"vendorId"`
	ProductID    uint16        `mapstructure:"productId"`
	Interface    int           `mapstructure:"interface"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	PollTimeout  time.Duration `mapstructure:"pollTimeout"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	SendInterval time.Duration `mapstructure:"sendInterval"`
	FrameBuffer  int           `mapstructure:"frameBuffer"`
	AutoConnect  bool          `mapstructure:"autoConnect"`
	DebugMode    bool          `mapstructure:"debugMode"`
}

// DevicesConfig 帧ID到设备类型（限束器ID固定，不在此配置）
type DevicesConfig struct {
	Ceiling []int32 `mapstructure:"ceiling"`
	Stand   []int32 `mapstructure:"stand"`
	Table   []int32 `mapstructure:"table"`
	Zigbee  []int32 `mapstructure:"zigbee"`
}

// RedisConfig Redis 连接与事件投递配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	EventList    string        `mapstructure:"eventList"`
	EventChannel string        `mapstructure:"eventChannel"`
	MaxEvents    int64         `mapstructure:"maxEvents"`
}

// MQTTConfig MQTT 事件投递配置
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"clientId"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topicPrefix"`
	QoS            byte          `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
	PublishTimeout time.Duration `mapstructure:"publishTimeout"`
}

// APIConfig 控制接口鉴权
type APIConfig struct {
	AuthEnabled bool     `mapstructure:"authEnabled"`
	APIKeys     []string `mapstructure:"apiKeys"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	USB     USBConfig     `mapstructure:"usb"`
	Devices DevicesConfig `mapstructure:"devices"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	API     APIConfig     `mapstructure:"api"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 ELIN_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("ELIN_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 ELIN_，并将点号替换为下划线
	v.SetEnvPrefix("ELIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.USB.Driver {
	case "libusb":
	case "replay":
		if c.USB.ReplayPath == "" {
			return fmt.Errorf("usb.replayPath required for replay driver")
		}
	default:
		return fmt.Errorf("unknown usb.driver %q", c.USB.Driver)
	}
	if c.USB.WriteTimeout <= 0 || c.USB.PollTimeout <= 0 {
		return fmt.Errorf("usb timeouts must be positive")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "elincan")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.swagger", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/elincan.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("usb.driver", "libusb")
	v.SetDefault("usb.vendorId", 0x2542)
	v.SetDefault("usb.productId", 0x1020)
	v.SetDefault("usb.interface", 0)
	v.SetDefault("usb.writeTimeout", "3s")
	v.SetDefault("usb.pollTimeout", "10ms")
	v.SetDefault("usb.pollInterval", "1ms")
	v.SetDefault("usb.sendInterval", "2ms")
	v.SetDefault("usb.frameBuffer", 256)
	v.SetDefault("usb.autoConnect", true)
	v.SetDefault("usb.debugMode", false)

	v.SetDefault("devices.ceiling", []int32{0x040})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.eventList", "elincan:events")
	v.SetDefault("redis.eventChannel", "elincan:events")
	v.SetDefault("redis.maxEvents", 10000)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.clientId", "elincan")
	v.SetDefault("mqtt.topicPrefix", "elincan")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.connectTimeout", "5s")
	v.SetDefault("mqtt.publishTimeout", "2s")

	v.SetDefault("api.authEnabled", false)
}
