// Package config loads server configuration from config.yml with
// environment variable overrides.
package config

import (
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Log    LogConfig
}

type ServerConfig struct {
	Addr      string `yaml:"addr" env:"SERVER_ADDR" env-default:":8080"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR" env-default:"./web"`
	// Seed fixes the server's random stream; 0 means derive from the
	// clock.
	Seed int64 `yaml:"seed" env:"GAME_SEED" env-default:"0"`
}

type StoreConfig struct {
	// Backend selects the shared document store: "memory" or "redis".
	Backend   string `yaml:"backend" env:"STORE_BACKEND" env-default:"memory"`
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisDB   int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	// SQLitePath is the durable event/run archive.
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./data/heat.db"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func LoadConfig() (*Config, error) {
	configPath := "config.yml"

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Printf("warning: could not read config file '%s': %v. Falling back to environment variables.", configPath, err)
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	return &cfg, nil
}
