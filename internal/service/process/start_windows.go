//go:build windows

package process

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedAttributes starts the child without a console, in its own process
// group, so that it survives the parent.
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// hiddenAttributes keeps short-lived queries from flashing a console window.
func hiddenAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NO_WINDOW,
		HideWindow:    true,
	}
}
