package config

import (
	pkgconfig "github.com/lumachat/lumachat/pkg/config"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Assistant AssistantConfig
	OTP       OTPConfig `mapstructure:"otp"`
	Countries CountriesConfig
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// StorageConfig selects and configures the durable state store.
type StorageConfig struct {
	Driver string // file, database, redis
	File   FileStorageConfig
	Redis  RedisStorageConfig
}

type FileStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

type RedisStorageConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// DatabaseConfig configures the relational backend used when the storage
// driver is "database".
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	Issuer          string
}

type AssistantConfig struct {
	MinDelayMs int `mapstructure:"min_delay_ms"`
	MaxDelayMs int `mapstructure:"max_delay_ms"`
}

type OTPConfig struct {
	SendDelayMs   int `mapstructure:"send_delay_ms"`
	VerifyDelayMs int `mapstructure:"verify_delay_ms"`
}

type CountriesConfig struct {
	URL             string
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
}

type ChatConfig struct {
	LoadMoreDelayMs int `mapstructure:"load_more_delay_ms"`
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.file.base_path", "./data/state")
	v.SetDefault("storage.redis.address", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "lumachat")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "lumachat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/lumachat.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("auth.token_ttl_minutes", 1440)
	v.SetDefault("auth.issuer", "lumachat")
	v.SetDefault("assistant.min_delay_ms", 1000)
	v.SetDefault("assistant.max_delay_ms", 3000)
	v.SetDefault("otp.send_delay_ms", 1000)
	v.SetDefault("otp.verify_delay_ms", 1500)
	v.SetDefault("countries.url", "https://restcountries.com/v3.1/all?fields=name,idd,flag")
	v.SetDefault("countries.timeout_seconds", 10)
	v.SetDefault("countries.cache_ttl_minutes", 60)
	v.SetDefault("chat.load_more_delay_ms", 500)
	v.SetDefault("log.level", "info")

	// Bind environment variables
	v.BindEnv("server.port", "PORT")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.file.base_path", "STORAGE_BASE_PATH")
	v.BindEnv("storage.redis.address", "REDIS_ADDRESS")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("auth.token_ttl_minutes", "AUTH_TOKEN_TTL_MINUTES")
	v.BindEnv("countries.url", "COUNTRIES_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
