//go:build linux

package thread

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SetCPUAffinity pins the calling OS thread to the given cores. Callers must
// hold the thread with runtime.LockOSThread for the pin to mean anything.
func SetCPUAffinity(cores ...int) error {
	if len(cores) == 0 {
		return nil
	}

	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		if c < 0 {
			return errors.Errorf("invalid cpu %d", c)
		}
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrap(err, "Can not set cpu affinity")
	}
	return nil
}
