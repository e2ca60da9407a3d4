package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

type Config struct {
	Serial    SerialConfig    `yaml:"serial" toml:"serial"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Monitor   MonitorConfig   `yaml:"monitor" toml:"monitor"`
	Sweep     SweepConfig     `yaml:"sweep" toml:"sweep"`
	Arbitrary ArbitraryConfig `yaml:"arbitrary" toml:"arbitrary"`
}

type SerialConfig struct {
	Port         string        `yaml:"port" toml:"port"`
	Baud         int           `yaml:"baud" toml:"baud"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
}

type SessionConfig struct {
	DeviceID    string        `yaml:"device_id" toml:"device_id"`
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay" toml:"settle_delay"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	PoolSize int    `yaml:"pool_size" toml:"pool_size"`
	Channel  string `yaml:"channel" toml:"channel"`
}

type LogConfig struct {
	Level    string `yaml:"level" toml:"level"`
	Format   string `yaml:"format" toml:"format"`
	Output   string `yaml:"output" toml:"output"`
	FilePath string `yaml:"file_path" toml:"file_path"`
}

type MonitorConfig struct {
	Enabled         bool          `yaml:"enabled" toml:"enabled"`
	MetricsPort     int           `yaml:"metrics_port" toml:"metrics_port"`
	PollInterval    time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	RuntimeInterval time.Duration `yaml:"runtime_interval" toml:"runtime_interval"`
}

// SweepConfig 演示扫描: 通道1电压递增, 通道2电压递减
type SweepConfig struct {
	Steps    int           `yaml:"steps" toml:"steps"`
	Interval time.Duration `yaml:"interval" toml:"interval"`
}

// ArbitraryConfig 任意波形, RunFor 为 0 时一直运行到收到退出信号
type ArbitraryConfig struct {
	Steps      protocol.Program `yaml:"steps" toml:"steps"`
	Iterations int              `yaml:"iterations" toml:"iterations"`
	RunFor     time.Duration    `yaml:"run_for" toml:"run_for"`
}

// LoadConfig 加载配置文件, 按扩展名选择 YAML 或 TOML, 未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := GetDefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s", path)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return config, nil
}

// Validate 检查串口参数和任意波形
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return errors.New("serial.port 为空")
	}
	if err := protocol.ValidateBaud(c.Serial.Baud); err != nil {
		return fmt.Errorf("serial.baud: %w", err)
	}
	if len(c.Arbitrary.Steps) > 0 {
		if err := protocol.ValidateProgram(c.Arbitrary.Steps, c.Arbitrary.Iterations); err != nil {
			return fmt.Errorf("arbitrary: %w", err)
		}
	}
	if c.Sweep.Steps < 1 {
		return fmt.Errorf("sweep.steps 必须大于 0: %d", c.Sweep.Steps)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval 必须大于 0: %v", c.Monitor.PollInterval)
	}
	if c.Monitor.Enabled && c.Monitor.RuntimeInterval <= 0 {
		return fmt.Errorf("monitor.runtime_interval 必须大于 0: %v", c.Monitor.RuntimeInterval)
	}
	return nil
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         "/dev/ttyUSB0",
			Baud:         9600,
			PollInterval: 100 * time.Millisecond,
		},
		Session: SessionConfig{
			DeviceID:    "hm8143",
			ReadTimeout: time.Second,
			SettleDelay: 100 * time.Millisecond,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 4,
			Channel:  "hm8143_readings",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:         false,
			MetricsPort:     9090,
			PollInterval:    time.Second,
			RuntimeInterval: 10 * time.Second,
		},
		Sweep: SweepConfig{
			Steps:    30,
			Interval: 100 * time.Millisecond,
		},
		Arbitrary: ArbitraryConfig{
			Steps: protocol.Program{
				{Duration: time.Second, Voltage: 20},
				{Duration: time.Millisecond, Voltage: 15},
				{Duration: 100 * time.Millisecond, Voltage: 2},
			},
			Iterations: 2,
		},
	}
}
