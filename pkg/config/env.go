package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env files into the process environment before config
// expansion. Missing files are skipped; variables already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
