package disc

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultDevice is the optical drive used when none is given.
const DefaultDevice = "/dev/sr0"

// DriveStatus is the tray/media state reported by CDROM_DRIVE_STATUS.
type DriveStatus int

const (
	DriveNoInfo DriveStatus = iota
	DriveNoDisc
	DriveTrayOpen
	DriveNotReady
	DriveDiscOK
)

func (s DriveStatus) String() string {
	switch s {
	case DriveNoInfo:
		return "no info"
	case DriveNoDisc:
		return "no disc"
	case DriveTrayOpen:
		return "tray open"
	case DriveNotReady:
		return "not ready"
	case DriveDiscOK:
		return "disc ok"
	default:
		return fmt.Sprintf("unknown (%d)", int(s))
	}
}

// WaitForDisc polls the drive until it reports a readable disc or ctx ends.
func WaitForDisc(ctx context.Context, device string, interval time.Duration) (DriveStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := CheckDriveStatus(device)
		if err != nil {
			return status, err
		}
		if status == DriveDiscOK {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// deviceNameFromEnv extracts the device node from udev DEVNAME or DEVPATH.
func deviceNameFromEnv(env map[string]string) string {
	name := env["DEVNAME"]
	if name == "" {
		devpath := env["DEVPATH"]
		if devpath == "" {
			return ""
		}
		name = devpath[strings.LastIndex(devpath, "/")+1:]
	}
	if !strings.HasPrefix(name, "/") {
		name = "/dev/" + name
	}
	return name
}
