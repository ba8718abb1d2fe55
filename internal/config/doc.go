// Package config holds the tornodes configuration.
//
// Values are layered in this order, later sources winning:
//
//  1. defaults from NewConfig
//  2. the YAML file found by FindConfigFile
//  3. the environment (HOST, PORT, CACHE_TTL_HOURS, DETAILED_CACHE_TTL_MINUTES,
//     REQUEST_TIMEOUT, MAX_RETRIES, LOG_LEVEL, CACHE_DIR)
//  4. command line flags the user set explicitly
//
// Validate is called once after all layers are applied.
package config
