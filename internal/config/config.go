package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Storage          string `yaml:"storage" env:"STORAGE" env-default:"memory"`
	DataDir          string `yaml:"data_dir" env:"DATA_DIR" env-default:"data"`
	DatabaseHost     string `yaml:"database_host" env:"DATABASE_HOST" env-default:"localhost"`
	DatabasePort     string `yaml:"database_port" env:"DATABASE_PORT" env-default:"5432"`
	DatabaseUser     string `yaml:"database_user" env:"DATABASE_USER" env-default:"postgres"`
	DatabasePassword string `yaml:"database_password" env:"DATABASE_PASSWORD" env-default:"password"`
	DatabaseName     string `yaml:"database_name" env:"DATABASE_NAME" env-default:"soda"`
	MigrationsDir    string `yaml:"migrations_dir" env:"MIGRATIONS_DIR" env-default:"migrations"`
	ServerPort       string `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	JWTSecret        string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"secret"`
	OperatorPassword string `yaml:"operator_password" env:"OPERATOR_PASSWORD" env-default:"operator"`
	SodaPrice        string `yaml:"soda_price" env:"SODA_PRICE" env-default:"0.75"`
	StrictDeposits   bool   `yaml:"strict_deposits" env:"STRICT_DEPOSITS" env-default:"false"`
	LogMode          string `yaml:"log_mode" env:"LOG_MODE" env-default:"production"`
	LogFile          string `yaml:"log_file" env:"LOG_FILE"`
}

// LoadConfig reads the YAML file named by CONFIG_PATH when set, otherwise the
// environment. Environment variables override file values.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if path, ok := os.LookupEnv("CONFIG_PATH"); ok && path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("couldn't read config file %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't read environment variables: %w", err)
	}
	return cfg, nil
}
