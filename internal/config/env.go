package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order; variables already set in the process win.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env and .env.local from the working directory when present.
func LoadEnvFiles() error {
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// BuildEnv returns the environment overrides for the build subprocess:
// variables from build.env_file overlaid with build.env.
func (c *Config) BuildEnv() (map[string]string, error) {
	env := map[string]string{}
	if c.Build.EnvFile != "" {
		path := c.Build.EnvFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.Workspace.Root, path)
		}
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read build env file: %w", err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for k, v := range c.Build.Env {
		env[k] = v
	}
	return env, nil
}
