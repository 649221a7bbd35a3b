package config

import (
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// AFIP
	AFIPEnv            string `mapstructure:"AFIP_ENV"` // test | production
	AFIPCUIT           string `mapstructure:"AFIP_CUIT"`
	AFIPPuntoVenta     int    `mapstructure:"AFIP_PUNTO_VENTA"`
	AFIPCertPath       string `mapstructure:"AFIP_CERT_PATH"`
	AFIPKeyPath        string `mapstructure:"AFIP_KEY_PATH"`
	AFIPTimeoutSeconds int    `mapstructure:"AFIP_TIMEOUT_SECONDS"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Sensible defaults for development
	viper.SetDefault("PORT", 8000)
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("AFIP_ENV", "test")
	viper.SetDefault("AFIP_PUNTO_VENTA", 1)
	viper.SetDefault("AFIP_TIMEOUT_SECONDS", 30)

	// Optional .env file for local development — does not fail if missing
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
