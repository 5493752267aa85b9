//go:build linux

package disc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pilebones/go-udev/netlink"

	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// MediaEvent reports an optical-media change seen on the udev netlink socket.
type MediaEvent struct {
	Device string
	Action string
}

// MediaMonitor watches udev for disc insertion on one drive.
type MediaMonitor struct {
	device string
	logger *slog.Logger
}

// NewMediaMonitor returns a monitor for device ("" watches every optical drive).
func NewMediaMonitor(device string, logger *slog.Logger) *MediaMonitor {
	return &MediaMonitor{
		device: device,
		logger: logging.NewComponentLogger(logger, "media-monitor"),
	}
}

// Watch blocks, invoking fn for each matching insertion, until ctx ends or fn returns an error.
func (m *MediaMonitor) Watch(ctx context.Context, fn func(MediaEvent) error) error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("disc: connect netlink: %w", err)
	}
	defer conn.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, m.matcher())
	defer close(quit)

	m.logger.Info("media monitor started",
		logging.String(logging.FieldEventType, "media_monitor_started"),
		logging.String(logging.FieldDevice, m.device),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldImpact, "disc insertion may be missed"),
			)
		case uevent := <-queue:
			devname := deviceName(uevent)
			if devname == "" || (m.device != "" && devname != m.device) {
				m.logger.Debug("ignoring uevent", logging.String(logging.FieldDevice, devname))
				continue
			}
			if err := fn(MediaEvent{Device: devname, Action: string(uevent.Action)}); err != nil {
				return err
			}
		}
	}
}

// matcher selects media changes on optical block devices.
func (m *MediaMonitor) matcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func deviceName(uevent netlink.UEvent) string {
	return deviceNameFromEnv(uevent.Env)
}
