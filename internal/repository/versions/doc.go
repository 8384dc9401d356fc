// Package versions implements the version cache: a durable map from an
// application name to the release tag that is known to be installed, plus
// markers for applications whose automatic updates were halted after a
// corrupt swap.
//
// The FileRepository keeps the map in memory and persists it as JSON on disk.
// An unreadable or malformed file reads as empty and a failed write keeps the
// in-memory value, so the cache never blocks a launch.
package versions
