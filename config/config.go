package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Trackfy  TrackfyConfig  `yaml:"trackfy"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	CodesExpiredTopicName string `yaml:"codes_expired_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TrackfyConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// "file" (по умолчанию) или "postgres".
	StorageBackend string `yaml:"storage_backend"`
	DataFile       string `yaml:"data_file"`

	CurrentStatusTTLSeconds  int `yaml:"current_status_ttl_seconds"`
	CreateRateLimitPerMinute int `yaml:"create_rate_limit_per_minute"`

	CleanupInitialDelaySeconds int `yaml:"cleanup_initial_delay_seconds"`
	CleanupIntervalSeconds     int `yaml:"cleanup_interval_seconds"`
	RetentionDays              int `yaml:"retention_days"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
