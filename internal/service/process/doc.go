// Package process starts and inspects companion executables: detached starts
// that outlive the launcher, lookups of running processes by executable name,
// and the `--version` query used to learn an installed version.
package process
