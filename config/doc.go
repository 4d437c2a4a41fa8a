// Package config handles application configuration loading and management.
//
// Configuration is stored in ~/.survivalpong/config.json and covers the
// simulation bounds and cadence, the minimum-stock policy, worker pool sizing
// and where match results are written. Any field can be overridden through
// SURVIVALPONG_* environment variables or a .env file.
package config
