package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey 缺少信誉服务 API Key，启动时致命
var ErrMissingAPIKey = errors.New("缺少 abuseipdb_key 配置")

type Config struct {
	AbuseIPDBKey string `mapstructure:"abuseipdb_key"`

	Reputation struct {
		URL              string        `mapstructure:"url"`
		CanaryIP         string        `mapstructure:"canary_ip"`
		MaxAgeInDays     int           `mapstructure:"max_age_in_days"`
		Verbose          bool          `mapstructure:"verbose"`
		Threshold        int           `mapstructure:"threshold"`
		Timeout          time.Duration `mapstructure:"timeout"`
		IdleInterval     time.Duration `mapstructure:"idle_interval"`
		RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	} `mapstructure:"reputation"`

	Monitor struct {
		SampleInterval     time.Duration `mapstructure:"sample_interval"`
		ConnectionInterval time.Duration `mapstructure:"connection_interval"`
		DiskPath           string        `mapstructure:"disk_path"`
		EventBuffer        int           `mapstructure:"event_buffer"`
		ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"monitor"`

	Files struct {
		DataDir    string `mapstructure:"data_dir"`
		TrafficLog string `mapstructure:"traffic_log"`
		AddressSet string `mapstructure:"address_set"`
		Ledger     string `mapstructure:"ledger"`
		Flagged    string `mapstructure:"flagged"`
	} `mapstructure:"files"`

	Security struct {
		WhitelistIPs []string `mapstructure:"whitelist_ips"`
	} `mapstructure:"security"`

	GeoIP struct {
		CountryPath string `mapstructure:"country_path"`
	} `mapstructure:"geoip"`

	InfluxDB struct {
		URL    string `mapstructure:"url"`
		Token  string `mapstructure:"token"`
		Org    string `mapstructure:"org"`
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"influxdb"`

	MySQL struct {
		DSN     string `mapstructure:"dsn"`
		MaxIdle int    `mapstructure:"max_idle"`
		MaxOpen int    `mapstructure:"max_open"`
	} `mapstructure:"mysql"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`

	Webhook struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"webhook"`

	Log LogConfig `mapstructure:"log"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reputation.url", "https://api.abuseipdb.com/api/v2/check")
	v.SetDefault("reputation.canary_ip", "8.8.8.8")
	v.SetDefault("reputation.max_age_in_days", 90)
	v.SetDefault("reputation.verbose", true)
	v.SetDefault("reputation.threshold", 1)
	v.SetDefault("reputation.timeout", 30*time.Second)
	v.SetDefault("reputation.idle_interval", time.Second)
	v.SetDefault("reputation.rate_limit_backoff", time.Minute)

	v.SetDefault("monitor.sample_interval", time.Second)
	v.SetDefault("monitor.connection_interval", time.Second)
	v.SetDefault("monitor.disk_path", "/")
	v.SetDefault("monitor.event_buffer", 256)
	v.SetDefault("monitor.shutdown_timeout", 30*time.Second)

	v.SetDefault("files.data_dir", "data")
	v.SetDefault("files.traffic_log", "network_traffic.csv")
	v.SetDefault("files.address_set", "ip_addresses.csv")
	v.SetDefault("files.ledger", "checked_ips.csv")
	v.SetDefault("files.flagged", "abusive_ips.csv")

	v.SetDefault("kafka.topic", "sysmonitor-flagged")
	v.SetDefault("log.level", "info")
}

// Load 读取配置文件并合并默认值与环境变量
// 配置文件不存在时仅使用默认值，API Key 可通过 ABUSEIPDB_KEY 环境变量提供
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := v.BindEnv("abuseipdb_key", "ABUSEIPDB_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("读取配置失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.AbuseIPDBKey = strings.TrimSpace(cfg.AbuseIPDBKey)
	return &cfg, nil
}

// Validate 校验启动必需项
func (c *Config) Validate() error {
	if c.AbuseIPDBKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Path 返回数据目录下的文件路径，绝对路径原样返回
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) || c.Files.DataDir == "" {
		return name
	}
	return filepath.Join(c.Files.DataDir, name)
}
