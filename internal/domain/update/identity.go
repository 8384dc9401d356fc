package update

import "path/filepath"

const (
	// StagedSuffix is appended to the target path to build the staging path.
	StagedSuffix = ".staged"
	// BackupSuffix is appended to the target path to build the backup path.
	BackupSuffix = ".bak"
)

// AppIdentity names an application and the three paths a swap touches.
// Target and backup share a directory so that renames between them stay on
// one filesystem.
type AppIdentity struct {
	// Name is the application identifier used by the feed and the cache.
	Name string
	// TargetPath is the executable that is launched.
	TargetPath string
	// StagingPath receives the downloaded artifact before it is promoted.
	StagingPath string
	// BackupPath holds the previous binary during a swap.
	BackupPath string
}

// NewAppIdentity builds the identity of name whose executable lives at targetPath.
func NewAppIdentity(name, targetPath string) AppIdentity {
	targetPath = filepath.Clean(targetPath)

	return AppIdentity{
		Name:        name,
		TargetPath:  targetPath,
		StagingPath: StagingPathFor(targetPath),
		BackupPath:  BackupPathFor(targetPath),
	}
}

// StagingPathFor returns the sibling staging path of target.
func StagingPathFor(target string) string {
	return target + StagedSuffix
}

// BackupPathFor returns the sibling backup path of target.
func BackupPathFor(target string) string {
	return target + BackupSuffix
}
