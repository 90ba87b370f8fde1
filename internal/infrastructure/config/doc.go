// Package config handles loading and validating meshsim configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MESHSIM_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Simulation.Topology)
package config
