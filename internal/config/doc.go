// Package config defines the launcher settings and provides helpers to load,
// validate and save them in YAML format.
//
// A Config is built once at startup; Paths derives every directory and file
// location from it so that no component reads ambient process state.
package config
