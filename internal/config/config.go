package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort int `env:"LEDGER_HTTP_PORT"`

	DBConfig struct {
		Host     string `env:"LEDGER_DB_HOST"`
		Port     int    `env:"LEDGER_DB_PORT"`
		User     string `env:"LEDGER_DB_USER"`
		Password string `env:"LEDGER_DB_PASSWORD"`
		Name     string `env:"LEDGER_DB_NAME"`
		SSLMode  string `env:"LEDGER_DB_SSLMODE"`
	}

	KafkaBrokerURL           string `env:"KAFKA_BROKER_URL"`
	KafkaMovementEventsTopic string `env:"KAFKA_MOVEMENT_EVENTS_TOPIC"`

	JournalBufferSize   int           `env:"JOURNAL_BUFFER_SIZE"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD"`

	LoanDefaultRateBps int64 `env:"LOAN_DEFAULT_RATE_BPS"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("LEDGER_HTTP_PORT", 8080)

	cfg.DBConfig.Host = getEnvOrDefault("LEDGER_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("LEDGER_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("LEDGER_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("LEDGER_DB_NAME", "ledger_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("LEDGER_DB_SSLMODE", "disable")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaMovementEventsTopic = getEnvOrDefault("KAFKA_MOVEMENT_EVENTS_TOPIC", "ledger_movement_events")

	cfg.JournalBufferSize = getEnvAsInt("JOURNAL_BUFFER_SIZE", 1024)
	cfg.ShutdownGracePeriod = getEnvAsDuration("SHUTDOWN_GRACE_PERIOD", 15*time.Second)

	cfg.LoanDefaultRateBps = int64(getEnvAsInt("LOAN_DEFAULT_RATE_BPS", 500))

	return cfg, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return "postgres://" + c.DBConfig.User + ":" + c.DBConfig.Password + "@" +
		c.DBConfig.Host + ":" + strconv.Itoa(c.DBConfig.Port) + "/" +
		c.DBConfig.Name + "?sslmode=" + c.DBConfig.SSLMode
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
