// Package config handles loading and validating guessfleet coordinator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GUESSFLEET_* environment variables
//   - Validation of required fields and game rules
//
// Security Considerations:
//   - Broker passwords and the JWT secret should be set via environment variables
//   - The JWT secret is only required when the API is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Game.MaxRounds)
package config
