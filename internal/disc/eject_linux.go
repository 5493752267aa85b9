//go:build linux

package disc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ioctl requests from linux/cdrom.h.
const (
	cdromEject       = 0x5309
	cdromDriveStatus = 0x5326
)

func openDevice(device string) (int, error) {
	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("disc: open %s: %w", device, err)
	}
	return fd, nil
}

// Eject opens the drive tray. It does not need an open session.
func Eject(device string) error {
	fd, err := openDevice(device)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	if err := unix.IoctlSetInt(fd, cdromEject, 0); err != nil {
		return fmt.Errorf("disc: eject %s: %w", device, err)
	}
	return nil
}

// CheckDriveStatus queries the tray and media state of device.
func CheckDriveStatus(device string) (DriveStatus, error) {
	fd, err := openDevice(device)
	if err != nil {
		return DriveNoInfo, err
	}
	defer unix.Close(fd)
	status, err := unix.IoctlRetInt(fd, cdromDriveStatus)
	if err != nil {
		return DriveNoInfo, fmt.Errorf("disc: drive status %s: %w", device, err)
	}
	return DriveStatus(status), nil
}
