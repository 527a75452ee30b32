// Package config loads service configuration from the environment.
//
// All engine settings live in SKIRMISH_SPACE_-prefixed environment variables;
// command-line flags layered on top by each entry point take precedence.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
