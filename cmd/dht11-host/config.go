package main

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

type Config struct {
	ConfigFile string
	Pin        int
	LogLevel   zerolog.Level
}

// Read environment variables
func LoadConfig() *Config {
	lvl, err := zerolog.ParseLevel(getEnv("DHT11_LOG_LEVEL", "info"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &Config{
		ConfigFile: getEnv("DHT11_CONFIG", ""),
		Pin:        getEnvInt("DHT11_PIN", 4),
		LogLevel:   lvl,
	}
}

// Get a string env variable
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// Get an int env variable
func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
