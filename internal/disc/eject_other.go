//go:build !linux

package disc

import (
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
)

// Eject is only implemented on Linux.
func Eject(device string) error {
	return fmt.Errorf("disc: eject %s: %w", device, blockio.ErrUnsupported)
}

// CheckDriveStatus is only implemented on Linux.
func CheckDriveStatus(device string) (DriveStatus, error) {
	return DriveNoInfo, fmt.Errorf("disc: drive status %s: %w", device, blockio.ErrUnsupported)
}
