//go:build !linux

package thread

import "github.com/pkg/errors"

func SetCPUAffinity(cores ...int) error {
	if len(cores) == 0 {
		return nil
	}
	return errors.New("cpu affinity is only supported on linux")
}
