package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// TokenEnv names the environment variable carrying the bot token.
const TokenEnv = "BOT_TOKEN"

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// applyEnv lets the environment override secrets from the file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(TokenEnv)); v != "" {
		cfg.Telegram.Token = v
	}
}
