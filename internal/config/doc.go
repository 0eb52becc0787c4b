// Package config loads dramaplay settings from the YAML config file, the
// environment and command line flags.
package config
