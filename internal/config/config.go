package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port             string        `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	Env              string        `envconfig:"APP_ENV" default:"dev" validate:"required,oneof=dev test prod"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	StoreDriver      string        `envconfig:"STORE_DRIVER" default:"file" validate:"oneof=file badger postgres"`
	StorePath        string        `envconfig:"STORE_PATH" default:"data/users.json" validate:"required_unless=StoreDriver postgres"`
	DatabaseDSN      string        `envconfig:"DATABASE_DSN" validate:"required_if=StoreDriver postgres"`
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"1m" validate:"gte=0"`
	RateLimitRPS     float64       `envconfig:"RATE_LIMIT_RPS" default:"20" validate:"gt=0"`
	RateLimitBurst   int           `envconfig:"RATE_LIMIT_BURST" default:"40" validate:"gt=0"`
	WsSendBuffer     int           `envconfig:"WS_SEND_BUFFER" default:"16" validate:"gt=0"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

var validate = validator.New()

// Load 先加载存在的 env 文件（不覆盖已有环境变量），再从环境变量解析配置并校验。
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
