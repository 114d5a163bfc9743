package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig holds the simulation tuning knobs.
type GameConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	PauseTimeout   time.Duration `mapstructure:"pause_timeout"`
	NextRoundDelay time.Duration `mapstructure:"next_round_delay"`
	ChatMaxLength  int           `mapstructure:"chat_max_length"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9090")
	viper.SetDefault("game.tick_interval", 16*time.Millisecond)
	viper.SetDefault("game.sweep_interval", time.Second)
	viper.SetDefault("game.pause_timeout", 90*time.Second)
	viper.SetDefault("game.next_round_delay", 5*time.Second)
	viper.SetDefault("game.chat_max_length", 500)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
