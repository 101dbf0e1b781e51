// Package config defines the environment-driven configuration structs for
// simple-account, loaded with cleanenv. Defaults are development values;
// production deployments override them via environment variables.
package config
