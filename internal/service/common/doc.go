// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC health client with per-call timeouts, used by
// "launcher status" to query the daemon.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
