package disc

import (
	"errors"
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// AuthenticationAvailable reports whether the backend accepts the authentication handshake by
// requesting an AGID and releasing it again. Directory backends and providers without a command
// channel report false.
func (s *Session) AuthenticationAvailable() (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	if s.sectors == nil {
		return false, nil
	}
	p := s.sectors.Provider()

	var agid int32
	err := p.DeviceCommand(blockio.ReportAGID, make([]byte, 8), &agid, 0)
	if errors.Is(err, blockio.ErrUnsupported) {
		s.logger.Debug("authentication not supported by backend")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("disc: request agid: %w", err)
	}

	if err := p.DeviceCommand(blockio.InvalidateAGID, nil, &agid, 0); err != nil {
		logging.WarnEvent(s.logger, "could not release authentication grant", "agid_release_failed",
			logging.Int("agid", int(agid)),
			logging.Error(err),
		)
	}
	return true, nil
}
