package config

import (
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first present .env file. godotenv.Load never
// overrides variables that are already set in the process environment.
// It returns the loaded path or "" when none was found.
func loadEnvFiles() string {
	for _, p := range envFiles {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}
