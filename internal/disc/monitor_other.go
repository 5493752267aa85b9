//go:build !linux

package disc

import (
	"context"
	"log/slog"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
)

// MediaEvent reports an optical-media change.
type MediaEvent struct {
	Device string
	Action string
}

// MediaMonitor is only implemented on Linux.
type MediaMonitor struct{}

func NewMediaMonitor(string, *slog.Logger) *MediaMonitor { return &MediaMonitor{} }

func (m *MediaMonitor) Watch(context.Context, func(MediaEvent) error) error {
	return blockio.ErrUnsupported
}
