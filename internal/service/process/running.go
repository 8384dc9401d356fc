package process

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// linuxCommLength is the length Linux truncates process names to.
const linuxCommLength = 15

// Info is a running process.
type Info struct {
	// PID is the process identifier.
	PID int
	// Executable is the process name as reported by the OS.
	Executable string
}

// FindByExecutable lists running processes, other than the caller, whose
// executable name matches the base name of path.
func FindByExecutable(path string) ([]Info, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var (
		name          = filepath.Base(path)
		thisProcessID = os.Getpid()
		found         []Info
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !matchesExecutable(process.Executable(), name) {
			continue
		}

		found = append(found, Info{
			PID:        process.Pid(),
			Executable: process.Executable(),
		})
	}

	return found, nil
}

// Running reports whether a process started from an executable named like
// path is alive.
func Running(path string) (bool, error) {
	found, err := FindByExecutable(path)
	if err != nil {
		return false, err
	}

	return len(found) > 0, nil
}

// matchesExecutable compares a reported process name with a file name.
// Windows names compare case-insensitively; Linux reports names truncated to
// linuxCommLength characters.
func matchesExecutable(processName, fileName string) bool {
	if processName == "" {
		return false
	}

	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return strings.EqualFold(processName, fileName)
	}

	if processName == fileName {
		return true
	}

	return len(processName) == linuxCommLength && strings.HasPrefix(fileName, processName)
}
