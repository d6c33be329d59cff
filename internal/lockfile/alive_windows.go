//go:build windows

package lockfile

import (
	"golang.org/x/sys/windows"
)

// processAlive checks whether a handle to the process can be opened.
func processAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	return true
}
