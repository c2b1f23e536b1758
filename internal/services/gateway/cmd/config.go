package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        int
	GRPCPort        int
	LogLevel        string
	Timezone        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	Broker  BrokerConfig
	Influx  InfluxConfig
	Email   EmailConfig
	Kafka   KafkaConfig
	History HistoryConfig
}

type BrokerConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
	Prefix   string
}

type InfluxConfig struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	Measurement   string
	Lookback      time.Duration
	BatchSize     int
	FlushInterval time.Duration
}

type EmailConfig struct {
	Endpoint        string
	ServiceID       string
	TemplateID      string
	UserID          string
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration
	CachePath       string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type HistoryConfig struct {
	Limit   int
	Refresh time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("grpc.port", 9090)
	v.SetDefault("log.level", "info")
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("shutdown.timeout", "5s")

	v.SetDefault("broker.enabled", true)
	v.SetDefault("broker.host", "localhost")
	v.SetDefault("broker.port", 1883)
	v.SetDefault("broker.user", "guest")
	v.SetDefault("broker.password", "guest")
	v.SetDefault("broker.clientid", "greenhouse-dashboard")
	v.SetDefault("broker.prefix", "")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "greenhouse")
	v.SetDefault("influx.bucket", "greenhouse")
	v.SetDefault("influx.measurement", "greenhouse_history")
	v.SetDefault("influx.lookback", "720h")
	v.SetDefault("influx.batchsize", 10)
	v.SetDefault("influx.flushinterval", "1s")

	v.SetDefault("email.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("email.serviceid", "")
	v.SetDefault("email.templateid", "")
	v.SetDefault("email.userid", "")
	v.SetDefault("email.timeout", "10s")
	v.SetDefault("email.breakerfailures", 3)
	v.SetDefault("email.breakeropenfor", "1m")
	v.SetDefault("email.breakerinterval", "0s")
	v.SetDefault("email.cachepath", "alert-email.cache")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "greenhouse.alerts")

	v.SetDefault("history.limit", 100)
	v.SetDefault("history.refresh", "30s")
}

// loadConfig reads .env, an optional config.yaml and GREENHOUSE_* variables,
// in increasing order of precedence.
func loadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/greenhouse")
	setDefaults(v)

	v.SetEnvPrefix("GREENHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPPort:        v.GetInt("http.port"),
		GRPCPort:        v.GetInt("grpc.port"),
		LogLevel:        v.GetString("log.level"),
		Timezone:        v.GetString("timezone"),
		AllowedOrigins:  splitList(v.GetString("cors.origins")),
		ShutdownTimeout: v.GetDuration("shutdown.timeout"),
		Broker: BrokerConfig{
			Enabled:  v.GetBool("broker.enabled"),
			Host:     v.GetString("broker.host"),
			Port:     v.GetInt("broker.port"),
			User:     v.GetString("broker.user"),
			Password: v.GetString("broker.password"),
			ClientID: v.GetString("broker.clientid"),
			Prefix:   v.GetString("broker.prefix"),
		},
		Influx: InfluxConfig{
			Enabled:       v.GetBool("influx.enabled"),
			URL:           v.GetString("influx.url"),
			Token:         v.GetString("influx.token"),
			Org:           v.GetString("influx.org"),
			Bucket:        v.GetString("influx.bucket"),
			Measurement:   v.GetString("influx.measurement"),
			Lookback:      v.GetDuration("influx.lookback"),
			BatchSize:     v.GetInt("influx.batchsize"),
			FlushInterval: v.GetDuration("influx.flushinterval"),
		},
		Email: EmailConfig{
			Endpoint:        v.GetString("email.endpoint"),
			ServiceID:       v.GetString("email.serviceid"),
			TemplateID:      v.GetString("email.templateid"),
			UserID:          v.GetString("email.userid"),
			Timeout:         v.GetDuration("email.timeout"),
			BreakerFailures: v.GetInt("email.breakerfailures"),
			BreakerOpenFor:  v.GetDuration("email.breakeropenfor"),
			BreakerInterval: v.GetDuration("email.breakerinterval"),
			CachePath:       v.GetString("email.cachepath"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		History: HistoryConfig{
			Limit:   v.GetInt("history.limit"),
			Refresh: v.GetDuration("history.refresh"),
		},
	}

	if cfg.HTTPPort <= 0 {
		return Config{}, fmt.Errorf("invalid http port %d", cfg.HTTPPort)
	}
	if cfg.Influx.Enabled && cfg.Influx.Token == "" {
		return Config{}, errors.New("influx is enabled but GREENHOUSE_INFLUX_TOKEN is empty")
	}
	return cfg, nil
}

// EmailEnabled reports whether the EmailJS identifiers are configured.
func (c EmailConfig) EmailEnabled() bool {
	return c.ServiceID != "" && c.TemplateID != "" && c.UserID != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
