// Package config handles loading and validating drmemd's configuration
// file (spec §6).
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with DRMEMD_* environment variables
//   - Validation of backend/driver/logic shape
//   - Default value handling
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Backend.Driver)
package config
