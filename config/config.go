package config

import (
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion       string `mapstructure:"GENERAL_VERSION"`
	Environment          string `mapstructure:"ENVIRONMENT"`
	ServerPort           int    `mapstructure:"SERVER_PORT"`
	APIServerPort        int    `mapstructure:"API_SERVER_PORT"`
	DatabaseHost         string `mapstructure:"DB_HOST"`
	DatabasePort         int    `mapstructure:"DB_PORT"`
	DatabaseName         string `mapstructure:"DB_NAME"`
	DatabaseUser         string `mapstructure:"DB_USER"`
	DatabasePassword     string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`
	DatabaseCacheReset   int    `mapstructure:"DB_CACHE_RESET"`
	CorsAllowOrigins     string `mapstructure:"CORS_ALLOW_ORIGINS"`
	StructuredStoreURL   string `mapstructure:"STRUCTURED_STORE_URL"`
	FileStorePrefix      string `mapstructure:"FILE_STORE_PREFIX"`
	LocalCacheDir        string `mapstructure:"LOCAL_CACHE_DIR"`
	LocalCacheQuotaBytes int64  `mapstructure:"LOCAL_CACHE_QUOTA_BYTES"`
	BackendTimeoutMs     int    `mapstructure:"BACKEND_TIMEOUT_MS"`
	ArchiveRetentionDays int    `mapstructure:"ARCHIVE_RETENTION_DAYS"`
	PropertyTimezone     string `mapstructure:"PROPERTY_TIMEZONE"`
	SchedulerEnabled     bool   `mapstructure:"SCHEDULER_ENABLED"`
	LogFile              string `mapstructure:"LOG_FILE"`
}

var ConfigInstance Config

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT", "API_SERVER_PORT",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT", "DB_CACHE_RESET",
	"CORS_ALLOW_ORIGINS",
	"STRUCTURED_STORE_URL", "FILE_STORE_PREFIX",
	"LOCAL_CACHE_DIR", "LOCAL_CACHE_QUOTA_BYTES",
	"BACKEND_TIMEOUT_MS", "ARCHIVE_RETENTION_DAYS", "PROPERTY_TIMEZONE",
	"SCHEDULER_ENABLED", "LOG_FILE",
}

func New() (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	viper.AutomaticEnv()
	setDefaults()

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("LOCAL_CACHE_DIR")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config",
		"environment", config.Environment,
		"serverPort", config.ServerPort,
		"structuredStoreURL", config.StructuredStoreURL,
		"localCacheDir", config.LocalCacheDir,
	)
	return ConfigInstance, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func setDefaults() {
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("SERVER_PORT", 8288)
	viper.SetDefault("API_SERVER_PORT", 8289)
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_CACHE_PORT", 6379)
	viper.SetDefault("FILE_STORE_PREFIX", "hkboard")
	viper.SetDefault("LOCAL_CACHE_DIR", "./data")
	viper.SetDefault("LOCAL_CACHE_QUOTA_BYTES", 5*1024*1024)
	viper.SetDefault("BACKEND_TIMEOUT_MS", 6000)
	viper.SetDefault("ARCHIVE_RETENTION_DAYS", 30)
	viper.SetDefault("SCHEDULER_ENABLED", true)
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if config.LocalCacheDir == "" {
		return log.ErrMsg("Fatal error: LOCAL_CACHE_DIR is required")
	}

	if config.BackendTimeoutMs <= 0 {
		return log.Error(
			"Fatal error: invalid backend timeout",
			"timeoutMs", config.BackendTimeoutMs,
		)
	}

	if config.ArchiveRetentionDays <= 0 {
		return log.Error(
			"Fatal error: invalid archive retention",
			"days", config.ArchiveRetentionDays,
		)
	}

	if config.PropertyTimezone != "" {
		if _, err := time.LoadLocation(config.PropertyTimezone); err != nil {
			return log.Err("Fatal error: unknown PROPERTY_TIMEZONE", err, "timezone", config.PropertyTimezone)
		}
	}

	ConfigInstance = config
	return nil
}

func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMs) * time.Millisecond
}

// HasCacheServer reports whether a Valkey address is configured.
func (c Config) HasCacheServer() bool {
	return c.DatabaseCacheAddress != ""
}

// HasDatabase reports whether a PostgreSQL host is configured.
func (c Config) HasDatabase() bool {
	return c.DatabaseHost != ""
}
