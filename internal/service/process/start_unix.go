//go:build !windows

package process

import "syscall"

// detachedAttributes puts the child into its own session so that it survives
// the parent and its terminal.
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// hiddenAttributes is a no-op outside Windows.
func hiddenAttributes() *syscall.SysProcAttr {
	return nil
}
