// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个应用的配置根结构，从 yaml 文件加载。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

// AppConfig 包含业务层面的可调参数。
type AppConfig struct {
	// ReservationTimeoutMinutes 是库存预占的有效时长，默认 15 分钟
	ReservationTimeoutMinutes int `yaml:"reservation_timeout_minutes"`
	// SweepIntervalSeconds 是过期扫描的周期，默认 60 秒
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	// ReservationPolicy 是一条可选的 CEL 表达式，在创建预占前求值，
	// 例如 "quantity <= 10"。为空则不启用。
	ReservationPolicy string `yaml:"reservation_policy"`
}

// InfraConfig 包含所有基础设施的连接信息。
type InfraConfig struct {
	Mysql struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers                []string `yaml:"brokers"`
		ReservationEventsTopic string   `yaml:"reservation_events_topic"`
	} `yaml:"kafka"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Zookeeper struct {
		Addrs []string `yaml:"addrs"`
	} `yaml:"zookeeper"`
	Nacos struct {
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// Init 加载配置文件。路径由 CONFIG_PATH 环境变量指定，
// 缺省为 configs/config.yaml；文件不存在时使用内置默认值。
func Init() {
	configOnce.Do(func() {
		currentConfig = defaultConfig()

		path := getEnv("CONFIG_PATH", "configs/config.yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			// 没有配置文件不是致命错误，本地开发依赖默认值即可
			return
		}
		if err := yaml.Unmarshal(data, &currentConfig); err != nil {
			panic("bootstrap: invalid config file " + path + ": " + err.Error())
		}
		applyDefaults(&currentConfig)
	})
}

// GetCurrentConfig 返回当前生效的配置。必须先调用 Init。
func GetCurrentConfig() Config {
	return currentConfig
}

// ReservationTimeout 把配置的分钟数转成 time.Duration。
func (a AppConfig) ReservationTimeout() time.Duration {
	return time.Duration(a.ReservationTimeoutMinutes) * time.Minute
}

// SweepInterval 把配置的秒数转成 time.Duration。
func (a AppConfig) SweepInterval() time.Duration {
	return time.Duration(a.SweepIntervalSeconds) * time.Second
}

func defaultConfig() Config {
	var c Config
	c.App.ReservationTimeoutMinutes = 15
	c.App.SweepIntervalSeconds = 60
	c.Infra.Mysql.DSN = getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/stockpile?charset=utf8mb4&parseTime=True&loc=UTC")
	c.Infra.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	c.Infra.Kafka.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	c.Infra.Kafka.ReservationEventsTopic = "reservation-events"
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	return c
}

// applyDefaults 补齐配置文件中省略的字段。
func applyDefaults(c *Config) {
	if c.App.ReservationTimeoutMinutes <= 0 {
		c.App.ReservationTimeoutMinutes = 15
	}
	if c.App.SweepIntervalSeconds <= 0 {
		c.App.SweepIntervalSeconds = 60
	}
	if c.Infra.Kafka.ReservationEventsTopic == "" {
		c.Infra.Kafka.ReservationEventsTopic = "reservation-events"
	}
	if c.Infra.Jaeger.Endpoint == "" {
		c.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	}
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
