package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

// ServerConfig is the listening side of a service. AdvertiseHost is the
// host registered in etcd, since Host is usually a wildcard.
type ServerConfig struct {
	Name          string `mapstructure:"name"`
	Port          int    `mapstructure:"port"`
	Host          string `mapstructure:"host"`
	AdvertiseHost string `mapstructure:"advertise_host"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	Channel  string        `mapstructure:"channel"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
	OrderTTL time.Duration `mapstructure:"order_ttl"`
}

// DatabaseConfig selects the order store backend: "mysql", "sqlite" or "memory".
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type GatewayConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	OrderService string `mapstructure:"order_service"`
	OrderAddr    string `mapstructure:"order_addr"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// PaymentConfig configures the payment provider. Mode "simulated" approves
// every charge; "decline" and "cancel" exist for local testing of the
// failure paths.
type PaymentConfig struct {
	Mode     string        `mapstructure:"mode"`
	Currency string        `mapstructure:"currency"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	ImageDir     string `mapstructure:"image_dir"`
	PublicPrefix string `mapstructure:"public_prefix"`
}

type CatalogConfig struct {
	Sides  []OptionConfig `mapstructure:"sides"`
	Drinks []OptionConfig `mapstructure:"drinks"`
	Extras []OptionConfig `mapstructure:"extras"`
}

type OptionConfig struct {
	ID       string  `mapstructure:"id"`
	Name     string  `mapstructure:"name"`
	Price    float64 `mapstructure:"price"`
	Included bool    `mapstructure:"included"`
}

func (c CatalogConfig) Empty() bool {
	return len(c.Sides) == 0 && len(c.Drinks) == 0 && len(c.Extras) == 0
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "order-service")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50052)
	v.SetDefault("server.advertise_host", "localhost")
	v.SetDefault("server.metrics_addr", ":9102")
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)
	v.SetDefault("redis.channel", "orders:changes")
	v.SetDefault("redis.cart_ttl", 24*time.Hour)
	v.SetDefault("redis.order_ttl", 30*time.Minute)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite_path", "foodcart.db")
	v.SetDefault("mongodb.collection", "order_history")
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.order_service", "order-service")
	v.SetDefault("gateway.order_addr", "localhost:50052")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("auth.issuer", "foodcart")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("payment.mode", "simulated")
	v.SetDefault("payment.currency", "ZAR")
	v.SetDefault("payment.timeout", 2*time.Minute)
	v.SetDefault("storage.image_dir", "data/images")
	v.SetDefault("storage.public_prefix", "/images")
}

// Load reads a YAML config file. Any key can be overridden from the
// environment with the FOODCART_ prefix, e.g. FOODCART_REDIS_ADDR.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FOODCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}
