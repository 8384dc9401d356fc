// Package release resolves the latest published release of an application.
//
// A Resolver answers one question: what is the newest tag of an app and where
// is its artifact. Two feeds are implemented. GitHubResolver reads the GitHub
// releases API and supports two repository layouts (one repository per app,
// or one shared artifact repository). ManifestResolver reads a YAML manifest
// from a plain update folder, the format produced by `launcher package`.
//
// Feed responses are untrusted: bodies are size-capped and every field is
// validated before a ReleaseDescriptor is produced.
package release
