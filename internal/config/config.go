package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel          string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis             Redis    `yaml:"redis"`
	SQLiteStoragePath string   `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"journal.db"`
	Identity          Identity `yaml:"identity"`
	Peers             []Peer   `yaml:"peers"`
	Protocol          Protocol `yaml:"protocol"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Identity - the party this node plays as, its key pair derives from Seed.
type Identity struct {
	Name string `yaml:"name" env:"IDENTITY_NAME" env-required:"true"`
	Seed string `yaml:"seed" env:"IDENTITY_SEED" env-required:"true"`
}

// Peer - another party and its base64 ed25519 public key.
type Peer struct {
	Name      string `yaml:"name"`
	PublicKey string `yaml:"public-key"`
}

type Protocol struct {
	Timeout time.Duration `yaml:"timeout" env:"PROTOCOL_TIMEOUT" env-default:"30s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" || that.Port == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
