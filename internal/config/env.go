package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads each existing file in order. Variables already set,
// by the process or an earlier file, are kept.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}
