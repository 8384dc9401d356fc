// Package update contains the domain model of a binary self-update: which
// application is updated (AppIdentity), what it is updated to
// (ReleaseDescriptor), how one attempt progresses (Transaction) and how it
// ends (Result). It also owns version ordering and the error kinds shared by
// the orchestrator, the replacer and the release resolvers.
package update
