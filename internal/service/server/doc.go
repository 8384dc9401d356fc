// Package server implements the launcher daemon: a gRPC health endpoint with
// one service per app and a scheduler that keeps every app up to date.
package server
