package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultMongoDatabase     = "Atmos"
	defaultMongoCollection   = "datas"
	defaultBrokerURL         = "mqtt://fogueira-magica.com"
	defaultTopic             = "fatec/atmos/mongo/processar/"
	defaultReconnectInterval = 5 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	defaultPort              = 5004
)

// MQTTConfig holds the message transport settings.
type MQTTConfig struct {
	Enabled   bool
	BrokerURL string
	Topic     string
	ClientID  string
}

// Config holds runtime configuration for the processor service.
type Config struct {
	DatabaseURL       string
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	MQTT              MQTTConfig
	WatcherEnabled    bool
	ReconnectInterval time.Duration
	SyncSchedule      string
	SyncOnStartup     bool
	RequestTimeout    time.Duration
	Port              int
	BearerToken       string
	LogLevel          string
	LogFormat         string
}

// Load reads configuration from environment variables, optionally seeded from
// the given .env files (".env" when none are given).
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f) // ignore missing file
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("MONGO_DATABASE", defaultMongoDatabase)
	v.SetDefault("MONGO_COLLECTION", defaultMongoCollection)
	v.SetDefault("MQTT_BROKER_URL", defaultBrokerURL)
	v.SetDefault("MQTT_TOPIC", defaultTopic)
	v.SetDefault("MQTT_ENABLED", "true")
	v.SetDefault("WATCHER_ENABLED", "true")
	v.SetDefault("SYNC_ON_STARTUP", "true")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	cfg := Config{
		ReconnectInterval: defaultReconnectInterval,
		RequestTimeout:    defaultRequestTimeout,
		Port:              defaultPort,
	}

	get := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg.DatabaseURL = get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		dsn, err := databaseURLFromParts(get("DB_HOST"), get("DB_PORT"), get("DB_NAME"), get("DB_USER"), get("DB_PASSWORD"), get("DB_SSLMODE"))
		if err != nil {
			return cfg, err
		}
		cfg.DatabaseURL = dsn
	}

	cfg.MongoURI = get("MONGO_URI")
	if cfg.MongoURI == "" {
		return cfg, errors.New("MONGO_URI is required")
	}
	cfg.MongoDatabase = get("MONGO_DATABASE")
	cfg.MongoCollection = get("MONGO_COLLECTION")

	var err error
	if cfg.MQTT.Enabled, err = parseBool(get("MQTT_ENABLED")); err != nil {
		return cfg, fmt.Errorf("invalid MQTT_ENABLED: %w", err)
	}
	cfg.MQTT.BrokerURL = get("MQTT_BROKER_URL")
	if _, err := url.Parse(cfg.MQTT.BrokerURL); err != nil {
		return cfg, fmt.Errorf("invalid MQTT_BROKER_URL: %w", err)
	}
	cfg.MQTT.Topic = get("MQTT_TOPIC")
	cfg.MQTT.ClientID = get("MQTT_CLIENT_ID")
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "atmos-processor-" + uuid.NewString()
	}

	if cfg.WatcherEnabled, err = parseBool(get("WATCHER_ENABLED")); err != nil {
		return cfg, fmt.Errorf("invalid WATCHER_ENABLED: %w", err)
	}
	if cfg.SyncOnStartup, err = parseBool(get("SYNC_ON_STARTUP")); err != nil {
		return cfg, fmt.Errorf("invalid SYNC_ON_STARTUP: %w", err)
	}

	if s := get("WATCHER_RECONNECT_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_RECONNECT_INTERVAL: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("invalid WATCHER_RECONNECT_INTERVAL: %s", s)
		}
		cfg.ReconnectInterval = d
	}

	if s := get("REQUEST_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	cfg.SyncSchedule = get("SYNC_SCHEDULE")
	if cfg.SyncSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SyncSchedule); err != nil {
			return cfg, fmt.Errorf("invalid SYNC_SCHEDULE: %w", err)
		}
	}

	if portStr := get("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	cfg.BearerToken = get("API_BEARER_TOKEN")

	cfg.LogLevel = strings.ToLower(get("LOG_LEVEL"))
	cfg.LogFormat = strings.ToLower(get("LOG_FORMAT"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return cfg, fmt.Errorf("invalid LOG_FORMAT: %s", cfg.LogFormat)
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func databaseURLFromParts(host, port, name, user, password, sslmode string) (string, error) {
	if host == "" || name == "" || user == "" {
		return "", errors.New("DATABASE_URL or DB_HOST, DB_NAME and DB_USER are required")
	}
	if p, err := strconv.Atoi(port); err != nil || p <= 0 {
		return "", fmt.Errorf("invalid DB_PORT: %s", port)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String(), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
