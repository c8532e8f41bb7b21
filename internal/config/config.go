package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName          string
	ServerPort           int
	Debug                bool
	ServerDomain         string
	SubdomainNamespace   string
	ControllerTokenBytes int
	Database             DatabaseConfig
	Redis                RedisConfig
	RabbitMQ             RabbitMQConfig
	MQTT                 MQTTConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the hot-cache connection settings
type RedisConfig struct {
	Addr string
}

// RabbitMQConfig holds the task queue connection and routing settings
type RabbitMQConfig struct {
	URL            string
	TaskExchange   string
	TaskQueue      string
	TaskRoutingKey string
	DLQQueue       string
	PrefetchCount  int
}

// MQTTConfig holds the broker bridge settings
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	TopicRoot string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:          getEnv("SERVICE_NAME", "hydrofarm-backend"),
		ServerPort:           getEnvAsInt("SERVER_PORT", 8080),
		Debug:                getEnvAsBool("DEBUG", false),
		ServerDomain:         getEnv("SERVER_DOMAIN", "localhost:8080"),
		SubdomainNamespace:   getEnv("SUBDOMAIN_NAMESPACE", "farms"),
		ControllerTokenBytes: getEnvAsInt("CONTROLLER_TOKEN_BYTES", 20),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:            getEnv("RABBITMQ_URL", ""),
			TaskExchange:   getEnv("RABBITMQ_TASK_EXCHANGE", "hydrofarm.tasks.exchange"),
			TaskQueue:      getEnv("RABBITMQ_TASK_QUEUE", "hydrofarm.tasks.queue"),
			TaskRoutingKey: getEnv("RABBITMQ_TASK_ROUTING_KEY", "site.setup_subdomain"),
			DLQQueue:       getEnv("RABBITMQ_DLQ_QUEUE", "hydrofarm.tasks.dlq"),
			PrefetchCount:  getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		MQTT: MQTTConfig{
			BrokerURL: getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:  getEnv("MQTT_CLIENT_ID", "hydrofarm-backend"),
			TopicRoot: getEnv("MQTT_TOPIC_ROOT", "coordinators"),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
