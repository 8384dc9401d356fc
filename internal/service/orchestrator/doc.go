// Package orchestrator decides whether an application needs an update and
// drives the update when it does: it downloads the artifact to a staging
// path, hands the swap to the replacer executable and records the new
// version.
//
// When the application being updated is the running launcher itself, the
// orchestrator starts the replacer detached and exits so that the replacer can
// swap the launcher's executable.
package orchestrator
