package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const DEV_ENV_FILENAME = ".env.development"
const PROD_ENV_FILENAME = ".env.production"

// InitEnvironmentVariables loads the .env file for GO_ENV from dir. A
// missing file is not an error in production, where variables come from
// the host.
func InitEnvironmentVariables(dir string) error {
	envFile := filepath.Join(dir, DEV_ENV_FILENAME)
	if os.Getenv("GO_ENV") == "production" {
		envFile = filepath.Join(dir, PROD_ENV_FILENAME)
	}

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			log.Debugf("no env file at %s", envFile)
			return nil
		}

		return fmt.Errorf("failed to stat %s: %w", envFile, err)
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load %s file: %w", envFile, err)
	}

	log.Infof("loaded environment from %s", envFile)
	return nil
}
