// Package config manages user-level settings stored at ~/.mcs/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the host CLI binary, the package manager binary, and log settings.
package config
