// Package packager builds the manifest of an update folder: the version and
// SHA-512 checksum of every binary it contains.
package packager
