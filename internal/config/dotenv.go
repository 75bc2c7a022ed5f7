package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnvFiles copies values from dir/.env.local then dir/.env into the
// process environment. A variable that is already set and non-empty is
// never overwritten, so the shell wins over .env.local, which wins over .env.
func loadDotEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		values, err := godotenv.Read(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		for k, v := range values {
			if existing, ok := os.LookupEnv(k); ok && strings.TrimSpace(existing) != "" {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
