// Package replacer swaps a binary on disk while the process that used to run
// it exits.
//
// A Replacer waits until the target is writable, moves it to a single backup
// generation, atomically renames the staged artifact into place and starts the
// target again. If the publish rename fails the backup is renamed back. The
// outcome maps onto the process exit codes of the replacer executable, which
// the orchestrator decodes with ErrorFromExitCode.
package replacer
