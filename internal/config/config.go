package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	TCPPort  string `yaml:"tcp-port" env:"TCP_PORT" env-default:"8899"`
	WSPort   string `yaml:"ws-port" env:"WS_PORT" env-default:"8080"`
	HTTPPort string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis    Redis  `yaml:"redis"`
	Game     Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Game holds the session timers.
type Game struct {
	WaitTimeout time.Duration `yaml:"wait-timeout" env:"GAME_WAIT_TIMEOUT" env-default:"10s"`
	AIMoveDelay time.Duration `yaml:"ai-move-delay" env:"GAME_AI_MOVE_DELAY" env-default:"1s"`
	IdleTimeout time.Duration `yaml:"idle-timeout" env:"GAME_IDLE_TIMEOUT" env-default:"60s"`
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
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
