package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates all gateway settings, loaded from the environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type NATSConfig struct {
	URL string
}

// StorageConfig points the filesystem artifact store at its root directory
// and the base under which stored artifacts are publicly addressable.
type StorageConfig struct {
	Root    string
	BaseURL string
}

// UploadConfig bounds the artifact upload fan-out and request size.
type UploadConfig struct {
	MaxParallel  int
	MaxFileBytes int64
}

type LogConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "lending")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("storage.root", "artifacts")
	v.SetDefault("storage.baseurl", "http://localhost:8080/artifacts")
	v.SetDefault("upload.maxparallel", 4)
	v.SetDefault("upload.maxfilebytes", int64(10<<20))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		Storage: StorageConfig{
			Root:    v.GetString("storage.root"),
			BaseURL: v.GetString("storage.baseurl"),
		},
		Upload: UploadConfig{
			MaxParallel:  v.GetInt("upload.maxparallel"),
			MaxFileBytes: v.GetInt64("upload.maxfilebytes"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("server port %d is out of range", cfg.Server.Port)
	}
	if cfg.Upload.MaxParallel <= 0 {
		return nil, fmt.Errorf("upload max parallel must be positive, got %d", cfg.Upload.MaxParallel)
	}
	if cfg.Storage.Root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}

	return cfg, nil
}

// DatabaseDSN renders the Postgres connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password,
		c.Database.Host, c.Database.Port,
		c.Database.DBName, c.Database.SSLMode)
}
