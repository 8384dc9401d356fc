// Package launcher runs the user-facing actions of the launcher: make sure an
// application is installed and current, then start it.
//
// A Worker executes at most one action at a time across all applications and
// reports each Outcome on a channel with a single consumer.
package launcher
