package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig broker settings for the BLE bridge
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// GetDSN builds a lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv overrides fields from <prefix>_HOST, <prefix>_PORT, ...
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	c.Host = getEnv(prefix+"_HOST", c.Host)
	c.Port = parseInt(os.Getenv(prefix+"_PORT"), c.Port)
	c.User = getEnv(prefix+"_USER", c.User)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.Database = getEnv(prefix+"_NAME", c.Database)
	c.SSLMode = getEnv(prefix+"_SSLMODE", c.SSLMode)
	c.MaxConns = parseInt(os.Getenv(prefix+"_MAX_CONNS"), c.MaxConns)
	c.MaxIdle = parseInt(os.Getenv(prefix+"_MAX_IDLE"), c.MaxIdle)
}

// LoadFromEnv overrides fields from <prefix>_ADDR, <prefix>_PASSWORD, <prefix>_DB.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	c.Addr = getEnv(prefix+"_ADDR", c.Addr)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.DB = parseInt(os.Getenv(prefix+"_DB"), c.DB)
}

// LoadFromEnv overrides fields from <prefix>_BROKER, <prefix>_CLIENT_ID, ...
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	c.Broker = getEnv(prefix+"_BROKER", c.Broker)
	c.ClientID = getEnv(prefix+"_CLIENT_ID", c.ClientID)
	c.Username = getEnv(prefix+"_USERNAME", c.Username)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.Topic = getEnv(prefix+"_TOPIC", c.Topic)
	c.QoS = byte(parseInt(os.Getenv(prefix+"_QOS"), int(c.QoS)))
}

// Config settings shared by bptrack-data (HTTP API) and bptrack-ble (BLE gateway)
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       struct {
		Level  string
		Format string
	}
	Session struct {
		TTL time.Duration
	}
	Alert struct {
		Enabled     bool
		Stream      string
		MinCategory string // category label, see bpcategory
	}
	MQTT MQTTConfig
	BLE  struct {
		APIURL   string
		APIToken string

		// gateway account, used to log in again once the session token expires
		APIEmail        string
		APIPassword     string
		PayloadEncoding string // base64 or raw
		MinInterval     time.Duration
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default on for local dev: if the DB is unreachable bptrack-data falls back to memory repos.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "bptrack",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Session.TTL = parseDuration(os.Getenv("SESSION_TTL"), 15*24*time.Hour)

	cfg.Alert.Enabled = getEnv("ALERT_ENABLED", "true") == "true"
	cfg.Alert.Stream = getEnv("ALERT_STREAM", "bpstat:alerts")
	cfg.Alert.MinCategory = getEnv("ALERT_MIN_CATEGORY", "Hypertensive Crisis")

	cfg.MQTT = MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "bptrack-ble",
		Topic:    "bptrack/ble/+/measurement",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.BLE.APIURL = getEnv("BLE_API_URL", "http://localhost:8080")
	cfg.BLE.APIToken = getEnv("BLE_API_TOKEN", "")
	cfg.BLE.APIEmail = getEnv("BLE_API_EMAIL", "")
	cfg.BLE.APIPassword = getEnv("BLE_API_PASSWORD", "")
	cfg.BLE.PayloadEncoding = getEnv("BLE_PAYLOAD_ENCODING", "base64")
	cfg.BLE.MinInterval = parseDuration(os.Getenv("BLE_MIN_INTERVAL"), 30*time.Second)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
