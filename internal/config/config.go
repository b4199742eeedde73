package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	RelayURL         string        `mapstructure:"relay_url"`
	DeviceID         string        `mapstructure:"device_id"`
	ICEServers       []string      `mapstructure:"ice_servers"`
	SamplePeriod     time.Duration `mapstructure:"sample_period"`
	StatusResetDelay time.Duration `mapstructure:"status_reset_delay"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("relay_url", "ws://localhost:9090/ws")
	v.SetDefault("device_id", "dashcam-1")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	// Roughly one reading per display refresh.
	v.SetDefault("sample_period", "16ms")
	v.SetDefault("status_reset_delay", "2s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
