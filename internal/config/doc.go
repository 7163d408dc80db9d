// Package config provides the configuration of a gather run: command line
// options with their defaults and validation, and the YAML gather config
// file that declares gatherers and navigations.
package config
