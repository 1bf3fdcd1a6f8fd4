/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads guardpost configuration from a JSON file, an optional .env file and
// GUARDPOST_* environment variables, in that order of precedence from lowest to highest.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/joho/godotenv"

	"github.com/carverauto/guardpost/pkg/logger"
)

const DefaultEnvPrefix = "GUARDPOST_"

var errInvalidConfigPtr = errors.New("config must be a non-nil pointer")

// ConfigLoader fills dst from a single source.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configs that can check themselves after loading.
type Validator interface {
	Validate() error
}

// Defaulter is implemented by configs that fill zero values before validation.
type Defaulter interface {
	ApplyDefaults()
}

// Config holds the configuration loading dependencies.
type Config struct {
	file       ConfigLoader
	env        ConfigLoader
	dotenvPath string
	logger     logger.Logger
}

// NewConfig returns a loader reading the JSON file first and the environment second.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		file:       &FileConfigLoader{},
		env:        NewEnvConfigLoader(log, DefaultEnvPrefix),
		dotenvPath: ".env",
		logger:     log,
	}
}

// WithDotenv changes which .env file is read; an empty path disables it.
func (c *Config) WithDotenv(path string) *Config {
	c.dotenvPath = path
	return c
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration, applies defaults and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if v := reflect.ValueOf(cfg); v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	if err := c.loadDotenv(); err != nil {
		return err
	}

	if path != "" {
		if err := c.file.Load(ctx, path, cfg); err != nil {
			return err
		}
	}

	if err := c.env.Load(ctx, path, cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if d, ok := cfg.(Defaulter); ok {
		d.ApplyDefaults()
	}

	return ValidateConfig(cfg)
}

func (c *Config) loadDotenv() error {
	if c.dotenvPath == "" {
		return nil
	}

	if _, err := os.Stat(c.dotenvPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(c.dotenvPath); err != nil {
		return fmt.Errorf("failed to load %s: %w", c.dotenvPath, err)
	}

	c.logger.Debug().Str("path", c.dotenvPath).Msg("Loaded environment file")

	return nil
}
