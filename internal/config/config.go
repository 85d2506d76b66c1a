package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	// TransportMemory 进程内总线，开发和单机部署使用。
	TransportMemory = "memory"
	// TransportKafka Redis Stream outbox -> Kafka -> 通知消费者。
	TransportKafka = "kafka"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	DBPath      string

	// RedisAddr 为空时不启用 Redis（限流、事件流、通知去重全部降级）。
	RedisAddr string
	RedisDB   int

	// 订单事件投递方式：memory | kafka
	EventTransport string

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（状态变更后入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 下单接口限流
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration

	// AuthSecret 用于校验会话 JWT（HS256）。
	AuthSecret string

	StoreName string
	SMTP      SMTPConfig
}

// SMTPConfig 邮件发送配置；Host/User/Pass 任一缺失时退化为日志模式。
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Enabled 报告 SMTP 配置是否完整。
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port > 0 && c.User != "" && c.Pass != ""
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName:        getEnv("SERVICE_NAME", "storefront"),
		Env:                getEnv("ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "storefront.db"),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisDB:            0,
		EventTransport:     strings.ToLower(getEnv("EVENT_TRANSPORT", TransportMemory)),
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "storefront-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "storefront-notifier"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "storefront:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "storefront-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "storefront-relay-1"),
		CheckoutRateLimit:  20,
		CheckoutRateWindow: time.Minute,
		AuthSecret:         os.Getenv("AUTH_SECRET"),
		StoreName:          getEnv("STORE_NAME", "MonarxStore"),
		SMTP: SMTPConfig{
			Host: strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Port: 587,
			User: strings.TrimSpace(os.Getenv("SMTP_USER")),
			Pass: os.Getenv("SMTP_PASS"),
		},
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("CHECKOUT_RATE_LIMIT", cfg.CheckoutRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_LIMIT must be > 0")
	}
	cfg.CheckoutRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("CHECKOUT_RATE_WINDOW_SEC", int(cfg.CheckoutRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_WINDOW_SEC must be > 0")
	}
	cfg.CheckoutRateWindow = time.Duration(rateWindowSec) * time.Second

	smtpPort, err := getEnvInt("SMTP_PORT", cfg.SMTP.Port)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTP.Port = smtpPort
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.User)

	switch cfg.EventTransport {
	case TransportMemory:
	case TransportKafka:
		// kafka 模式依赖 Redis Stream 作为 outbox
		if cfg.RedisAddr == "" {
			return AppConfig{}, fmt.Errorf("EVENT_TRANSPORT=kafka requires REDIS_ADDR")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
	default:
		return AppConfig{}, fmt.Errorf("EVENT_TRANSPORT must be %q or %q", TransportMemory, TransportKafka)
	}

	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return cast.ToIntE(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
