package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envFileFlag    = "--env-file"
	envFileEnvVar  = "ENV_FILE"
	defaultEnvFile = ".env"
)

// LoadEnvFile loads environment variables before cobra parses the command line, so the config options can read them.
// The file is picked from the --env-file argument, then the ENV_FILE variable, then .env in the working directory.
// A missing default file is not an error. It returns the path that was loaded, or "" when none was.
func LoadEnvFile(args []string) (string, error) {
	path, explicit := envFilePath(args, os.Getenv(envFileEnvVar))

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("loading env file %s: %w", path, err)
	}
	return path, nil
}

// envFilePath resolves which file to load and whether the operator asked for it explicitly.
func envFilePath(args []string, fromEnv string) (path string, explicit bool) {
	for i, arg := range args {
		if value, found := strings.CutPrefix(arg, envFileFlag+"="); found && value != "" {
			return absPath(value), true
		}
		if arg == envFileFlag && i+1 < len(args) {
			return absPath(args[i+1]), true
		}
	}

	if fromEnv != "" {
		return absPath(fromEnv), true
	}
	return defaultEnvFile, false
}

func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
