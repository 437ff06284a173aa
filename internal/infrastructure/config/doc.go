// Package config handles loading and validating the pet tracker core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with PETTRACKER_* environment variables
//   - Validation of required fields (all problems reported together)
//   - Default value handling
//
// Secrets (MQTT password, InfluxDB token, Telegram bot token) should be set via
// environment variables rather than written to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.MQTT.TopicBase)
package config
