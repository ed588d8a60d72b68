package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	NewRelic   NewRelicConfig
	Log        LogConfig
	Clients    ClientsConfig
	Rides      RidesConfig
	Monitoring MonitoringConfig
	Auth       AuthConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds the webhook broker configuration.
type NATSConfig struct {
	URL  string
	Name string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Format string
}

// ServiceEndpoint is one HTTP collaborator.
type ServiceEndpoint struct {
	URL    string
	APIKey string
}

// MessageGatewayConfig holds the message gateway endpoint and credentials.
type MessageGatewayConfig struct {
	URL             string
	AccessKeyID     string
	SecretAccessKey string
}

// ClientsConfig holds the collaborator endpoints.
type ClientsConfig struct {
	Timeout        time.Duration
	Device         ServiceEndpoint
	Insurance      ServiceEndpoint
	Discount       ServiceEndpoint
	Location       ServiceEndpoint
	Equipment      ServiceEndpoint
	Platform       ServiceEndpoint
	MessageGateway MessageGatewayConfig
}

// RidesConfig holds the ride state machine tunables.
type RidesConfig struct {
	MaxStartDistance  float64
	AllowDebugBypass  bool
	PhotoUploadWindow time.Duration
	LockTTL           time.Duration
}

// MonitoringConfig holds the return photo checker schedule.
type MonitoringConfig struct {
	PhotoCheckEnabled  bool
	PhotoCheckInterval time.Duration
	PhotoGracePeriod   time.Duration
}

// AuthConfig holds credentials for internal callers.
type AuthConfig struct {
	InternalAPIKey string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "rental")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "rental-service")

	v.SetDefault("new_relic.app_name", "rental-service")
	v.SetDefault("new_relic.license_key", "")
	v.SetDefault("new_relic.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("clients.timeout", 5*time.Second)
	for _, name := range []string{"device", "insurance", "discount", "location", "equipment", "platform"} {
		v.SetDefault("clients."+name+".url", "")
		v.SetDefault("clients."+name+".api_key", "")
	}
	v.SetDefault("clients.message_gateway.url", "")
	v.SetDefault("clients.message_gateway.access_key_id", "")
	v.SetDefault("clients.message_gateway.secret_access_key", "")

	v.SetDefault("rides.max_start_distance", 300.0)
	v.SetDefault("rides.allow_debug_bypass", false)
	v.SetDefault("rides.photo_upload_window", 30*time.Minute)
	v.SetDefault("rides.lock_ttl", 90*time.Second)

	v.SetDefault("monitoring.photo_check_enabled", true)
	v.SetDefault("monitoring.photo_check_interval", time.Minute)
	v.SetDefault("monitoring.photo_grace_period", 5*time.Minute)

	v.SetDefault("auth.internal_api_key", "")
}

func endpoint(v *viper.Viper, name string) ServiceEndpoint {
	return ServiceEndpoint{
		URL:    v.GetString("clients." + name + ".url"),
		APIKey: v.GetString("clients." + name + ".api_key"),
	}
}

// Load loads configuration from environment variables, optionally
// layered over the YAML file at path. Keys map to variables by upper-casing
// and replacing dots, so db.host is read from DB_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		NATS: NATSConfig{
			URL:  v.GetString("nats.url"),
			Name: v.GetString("nats.name"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("new_relic.app_name"),
			LicenseKey: v.GetString("new_relic.license_key"),
			Enabled:    v.GetBool("new_relic.enabled"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Clients: ClientsConfig{
			Timeout:   v.GetDuration("clients.timeout"),
			Device:    endpoint(v, "device"),
			Insurance: endpoint(v, "insurance"),
			Discount:  endpoint(v, "discount"),
			Location:  endpoint(v, "location"),
			Equipment: endpoint(v, "equipment"),
			Platform:  endpoint(v, "platform"),
			MessageGateway: MessageGatewayConfig{
				URL:             v.GetString("clients.message_gateway.url"),
				AccessKeyID:     v.GetString("clients.message_gateway.access_key_id"),
				SecretAccessKey: v.GetString("clients.message_gateway.secret_access_key"),
			},
		},
		Rides: RidesConfig{
			MaxStartDistance:  v.GetFloat64("rides.max_start_distance"),
			AllowDebugBypass:  v.GetBool("rides.allow_debug_bypass"),
			PhotoUploadWindow: v.GetDuration("rides.photo_upload_window"),
			LockTTL:           v.GetDuration("rides.lock_ttl"),
		},
		Monitoring: MonitoringConfig{
			PhotoCheckEnabled:  v.GetBool("monitoring.photo_check_enabled"),
			PhotoCheckInterval: v.GetDuration("monitoring.photo_check_interval"),
			PhotoGracePeriod:   v.GetDuration("monitoring.photo_grace_period"),
		},
		Auth: AuthConfig{
			InternalAPIKey: v.GetString("auth.internal_api_key"),
		},
	}

	return cfg, nil
}
