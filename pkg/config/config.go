// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// EnvOverrider is implemented by configurations that take values from
// dedicated environment variables after the file is decoded.
type EnvOverrider interface {
	OverrideFromEnv()
}

// Load loads configuration from a YAML file with environment variable expansion.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := decode(filename, data, target); err != nil {
		return err
	}
	return finish(target)
}

// LoadOptional behaves like Load but keeps the defaults already in target
// when filename is empty or does not exist.
func LoadOptional[T any](filename string, target *T) error {
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := decode(filename, data, target); err != nil {
				return err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
	}
	return finish(target)
}

func decode[T any](filename string, data []byte, target *T) error {
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func finish[T any](target *T) error {
	if overrider, ok := any(target).(EnvOverrider); ok {
		overrider.OverrideFromEnv()
	}
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
