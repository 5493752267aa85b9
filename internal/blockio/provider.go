// Package blockio defines the block-level access contract used to read DVD media.
//
// A Provider is a byte-cursor view over a block device. Backends are either a local
// file or block device (FileProvider) or an external driver bound through Bind.
package blockio

import (
	"errors"
	"fmt"
)

// SectorSize is the DVD logical block size.
const SectorSize = 2048

// ErrUnsupported is returned by optional provider capabilities the backend lacks.
var ErrUnsupported = errors.New("blockio: operation not supported by backend")

// Provider is the contract every block backend implements.
//
// Read returns the bytes available up to len(p). It returns 0, io.EOF only at the
// end of the medium. ReadVector and DeviceCommand may return ErrUnsupported
// without affecting the other operations.
type Provider interface {
	Seek(pos int64) error
	Read(p []byte) (int, error)
	ReadVector(bufs [][]byte) (int, error)
	DeviceCommand(op Opcode, data []byte, agid *int32, lba uint32) error
	BlockSize() int
}

// Sizer is implemented by providers that know the medium length in bytes.
type Sizer interface {
	Size() int64
}

// Opcode identifies a device command of the authentication handshake.
type Opcode uint8

const (
	ReportAGID      Opcode = 0x00
	ReportChallenge Opcode = 0x01
	ReportKey1      Opcode = 0x02
	ReportTitleKey  Opcode = 0x04
	ReportASF       Opcode = 0x05
	ReportDiscKey   Opcode = 0x06
	ReportRPC       Opcode = 0x08
	InvalidateAGID  Opcode = 0x3f
	SendChallenge   Opcode = 0x11
	SendKey2        Opcode = 0x12
)

// IsSend reports whether the command carries payload from the caller to the device.
func (op Opcode) IsSend() bool {
	return op == SendChallenge || op == SendKey2
}

func (op Opcode) String() string {
	switch op {
	case ReportAGID:
		return "report_agid"
	case ReportChallenge:
		return "report_challenge"
	case ReportKey1:
		return "report_key1"
	case ReportTitleKey:
		return "report_title_key"
	case ReportASF:
		return "report_asf"
	case ReportDiscKey:
		return "report_disc_key"
	case ReportRPC:
		return "report_rpc"
	case InvalidateAGID:
		return "invalidate_agid"
	case SendChallenge:
		return "send_challenge"
	case SendKey2:
		return "send_key2"
	default:
		return fmt.Sprintf("opcode(0x%02x)", uint8(op))
	}
}
