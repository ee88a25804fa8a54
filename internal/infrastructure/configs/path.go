package configs

import (
	"flag"
	"os"

	"github.com/musorogski/cucme/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from the --config flag,
// the CUCME_CONFIG env var, or well-known locations. An empty result is
// fine: Load falls back to defaults plus env overrides.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("CUCME_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"/etc/cucme/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
