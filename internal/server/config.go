package server

import (
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries everything the server reads from the environment. A .env
// file in the working directory is picked up automatically via godotenv.
type Config struct {
	Port          int
	DatabaseUrl   string
	RedisAddr     string
	RedisPassword string
}

// LoadConfig reads the environment. PORT defaults to 8080; DATABASE_URL and
// REDIS_ADDR are optional and the caller decides what to do when they are
// empty (in-memory fallbacks for local development).
func LoadConfig() Config {
	cfg := Config{
		Port:          8080,
		DatabaseUrl:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		cfg.Port = port
	}
	return cfg
}
