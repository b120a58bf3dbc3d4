package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Cors     CorsConfig
	Logger   LoggerConfig
	Jaeger   JaegerConfig
	Sentry   SentryConfig
	Sqs      SqsConfig
	Broker   BrokerConfig
	Presence PresenceConfig
	Client   ClientConfig
}

type ServerConfig struct {
	InternalPort string `validate:"required"`
	ExternalPort string `validate:"required"`
	RunMode      string
	Domain       string `validate:"required"`
}

type LoggerConfig struct {
	FilePath string
	Encoding string
	Level    string
	Logger   string
}

type RedisConfig struct {
	Host         string `validate:"required"`
	Port         string `validate:"required"`
	Password     string
	Db           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

type CorsConfig struct {
	AllowOrigins string
}

type JaegerConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
}

type SentryConfig struct {
	Dsn            string
	Debug          bool
	SendDefaultPII bool
}

// SqsConfig describes the managed queue service used as the event bus.
type SqsConfig struct {
	QueuePrefix     string `validate:"required,max=60"`
	Region          string `validate:"required"`
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the provider endpoint (local emulators).
	Endpoint string

	MessageRetentionPeriod int `validate:"gte=60,lte=1209600"`
	LongPollingPeriod      int `validate:"gte=0,lte=20"`

	CredentialDuration time.Duration
	// FederationName switches credential issuance to federation tokens
	// scoped to the caller's own queue. Required in production: without it
	// clients receive session tokens carrying the gateway's permissions.
	FederationName string `validate:"omitempty,min=2,max=32"`

	QueueURLTTL time.Duration
	SendRate    float64 `validate:"gte=0"`
}

type BrokerConfig struct {
	WaitTimeout        time.Duration
	MaxConcurrentSends int
}

type PresenceConfig struct {
	StaleAfter   time.Duration
	ReapInterval time.Duration
	// ActiveWindow is how recent a heartbeat must be for a user to be
	// listed as active.
	ActiveWindow time.Duration
}

type ClientConfig struct {
	BaseURL       string
	PollInterval  time.Duration
	MaxMessages   int64 `validate:"gte=0,lte=10"`
	RefreshMargin time.Duration
}

func GetConfig() *Config {
	cfgPath := getConfigPath(os.Getenv("APP_ENV"))
	v, err := LoadConfig(cfgPath, "yml")
	if err != nil {
		log.Fatalf("Error in load config %v", err)
	}

	cfg, err := ParseConfig(v)
	if err != nil {
		log.Fatalf("Error in parse config %v", err)
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		cfg.Server.ExternalPort = envPort
		log.Printf("Set external port from environment -> %s", cfg.Server.ExternalPort)
	} else {
		log.Printf("Using external port from config -> %s", cfg.Server.ExternalPort)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// LoadFromEnv reads and parses the config file selected by APP_ENV without
// validating it.
func LoadFromEnv() (*Config, error) {
	v, err := LoadConfig(getConfigPath(os.Getenv("APP_ENV")), "yml")
	if err != nil {
		return nil, err
	}
	return ParseConfig(v)
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg)
	if err != nil {
		log.Printf("Unable to parse config: %v", err)
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func LoadConfig(filename string, fileType string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(fileType)
	v.SetConfigName(filename)

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./infrastructure/config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../infrastructure/config")
	v.AddConfigPath("../../infrastructure/config") // from cmd/letschat

	if wd, err := os.Getwd(); err == nil {
		v.AddConfigPath(filepath.Join(wd, "config"))
		v.AddConfigPath(filepath.Join(wd, "infrastructure", "config"))
	}

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		log.Printf("Unable to read config: %v", err)
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())
	return v, nil
}

func getConfigPath(env string) string {
	switch env {
	case "docker":
		return "config-docker"
	case "production":
		return "config-production"
	default:
		return "config-development"
	}
}

// Defaults returns a config holding only default values. Commands that
// can run without a config file start from it.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Sqs.CredentialDuration <= 0 {
		c.Sqs.CredentialDuration = time.Hour
	}
	if c.Sqs.QueueURLTTL <= 0 {
		c.Sqs.QueueURLTTL = 2 * time.Second
	}
	if c.Sqs.MessageRetentionPeriod == 0 {
		c.Sqs.MessageRetentionPeriod = 345600
	}
	if c.Broker.WaitTimeout <= 0 {
		c.Broker.WaitTimeout = 10 * time.Second
	}
	if c.Broker.MaxConcurrentSends <= 0 {
		c.Broker.MaxConcurrentSends = 16
	}
	if c.Presence.StaleAfter <= 0 {
		c.Presence.StaleAfter = 10 * time.Minute
	}
	if c.Presence.ReapInterval <= 0 {
		c.Presence.ReapInterval = 5 * time.Minute
	}
	if c.Presence.ActiveWindow <= 0 {
		c.Presence.ActiveWindow = 2 * time.Minute
	}
	if c.Client.PollInterval <= 0 {
		c.Client.PollInterval = time.Second
	}
	if c.Client.MaxMessages == 0 {
		c.Client.MaxMessages = 10
	}
	if c.Client.RefreshMargin <= 0 {
		c.Client.RefreshMargin = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Sqs.CredentialDuration < 15*time.Minute || c.Sqs.CredentialDuration > 36*time.Hour {
		return errors.New("sqs.credentialDuration must be between 15m and 36h")
	}
	if c.IsProduction() && c.Sqs.FederationName == "" {
		return errors.New("sqs.federationName is required in production so client credentials are scoped to one queue")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.RunMode == "debug" || c.Server.RunMode == "development"
}

func (c *Config) IsProduction() bool {
	return c.Server.RunMode == "release" || c.Server.RunMode == "production"
}

func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%s", c.Server.ExternalPort)
}
