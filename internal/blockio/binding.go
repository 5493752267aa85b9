package blockio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// BlockDevice is the shape of an external block driver.
// ReadBlocks fills p starting at logical block lba and returns the bytes read.
type BlockDevice interface {
	ReadBlocks(lba int64, p []byte) (int, error)
}

// BlockSizer is implemented by devices that report their block size.
type BlockSizer interface {
	BlockSize() int
}

// Commander is implemented by devices that expose the authentication command channel.
type Commander interface {
	DeviceCommand(op Opcode, data []byte, agid *int32, lba uint32) error
}

// VectorReader is implemented by devices that support scatter reads.
type VectorReader interface {
	ReadVector(lba int64, bufs [][]byte) (int, error)
}

// ExecContext scopes a device call to a valid execution context of the runtime that
// owns the device. Enter is called before every device invocation and the returned
// leave func right after it.
type ExecContext interface {
	Enter() (leave func(), err error)
}

type noopContext struct{}

func (noopContext) Enter() (func(), error) { return func() {}, nil }

// BindOption configures a Binding.
type BindOption func(*Binding)

// WithExecContext sets the capability wrapped around every device call.
func WithExecContext(ec ExecContext) BindOption {
	return func(b *Binding) {
		if ec != nil {
			b.exec = ec
		}
	}
}

// WithLogger sets the binding logger.
func WithLogger(logger *slog.Logger) BindOption {
	return func(b *Binding) {
		b.logger = logging.NewComponentLogger(logger, "blockio")
	}
}

// Binding adapts a BlockDevice to the Provider contract. It owns the byte cursor
// and the cached block size. A Binding is not safe for concurrent use.
type Binding struct {
	dev       BlockDevice
	exec      ExecContext
	logger    *slog.Logger
	pos       int64
	blockSize int
}

// Bind creates a provider over dev. The block size is queried once; a missing or
// non-positive value falls back to SectorSize.
func Bind(dev BlockDevice, opts ...BindOption) (*Binding, error) {
	if dev == nil {
		return nil, errors.New("blockio: nil block device")
	}
	b := &Binding{
		dev:       dev,
		exec:      noopContext{},
		logger:    logging.NewNop(),
		blockSize: SectorSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if sizer, ok := dev.(BlockSizer); ok {
		var size int
		err := b.call(func() error {
			size = sizer.BlockSize()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("blockio: query block size: %w", err)
		}
		if size > 0 {
			b.blockSize = size
		}
	}
	b.logger.Debug("provider bound", logging.Int("block_size", b.blockSize))
	return b, nil
}

func (b *Binding) call(fn func() error) error {
	leave, err := b.exec.Enter()
	if err != nil {
		return fmt.Errorf("blockio: enter execution context: %w", err)
	}
	defer leave()
	return fn()
}

// BlockSize returns the cached device block size.
func (b *Binding) BlockSize() int { return b.blockSize }

// Position returns the byte cursor.
func (b *Binding) Position() int64 { return b.pos }

// Seek moves the byte cursor.
func (b *Binding) Seek(pos int64) error {
	if pos < 0 {
		return fmt.Errorf("blockio: negative seek position %d", pos)
	}
	b.pos = pos
	return nil
}

// Read reads at the cursor and advances it by the bytes returned.
// Requests that do not start and end on block boundaries are served by reading the
// covering blocks and copying the requested span.
func (b *Binding) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	bs := int64(b.blockSize)
	if b.pos%bs != 0 || int64(len(p))%bs != 0 {
		return b.readUnaligned(p)
	}

	var n int
	err := b.call(func() error {
		var rerr error
		n, rerr = b.dev.ReadBlocks(b.pos/bs, p)
		return rerr
	})
	if n < 0 {
		n = 0
	}
	b.pos += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("blockio: read lba %d: %w", (b.pos-int64(n))/bs, err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (b *Binding) readUnaligned(p []byte) (int, error) {
	bs := int64(b.blockSize)
	start := b.pos - b.pos%bs
	end := b.pos + int64(len(p))
	if rem := end % bs; rem != 0 {
		end += bs - rem
	}
	b.logger.Debug("realigning unaligned read",
		logging.Int64("position", b.pos),
		logging.Int("length", len(p)),
	)

	scratch := make([]byte, end-start)
	var n int
	err := b.call(func() error {
		var rerr error
		n, rerr = b.dev.ReadBlocks(start/bs, scratch)
		return rerr
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("blockio: read lba %d: %w", start/bs, err)
	}
	skip := int(b.pos - start)
	if n <= skip {
		return 0, io.EOF
	}
	copied := copy(p, scratch[skip:n])
	b.pos += int64(copied)
	return copied, nil
}

// ReadVector performs a scatter read at the cursor when the device supports it.
func (b *Binding) ReadVector(bufs [][]byte) (int, error) {
	vr, ok := b.dev.(VectorReader)
	if !ok {
		return 0, ErrUnsupported
	}
	var n int
	err := b.call(func() error {
		var rerr error
		n, rerr = vr.ReadVector(b.pos/int64(b.blockSize), bufs)
		return rerr
	})
	if n > 0 {
		b.pos += int64(n)
	}
	return n, err
}

// DeviceCommand forwards an authentication command to the device.
// Send opcodes hand the caller payload to the device; report opcodes copy the device
// payload back into data only when the command succeeds. agid is in/out.
func (b *Binding) DeviceCommand(op Opcode, data []byte, agid *int32, lba uint32) error {
	cmd, ok := b.dev.(Commander)
	if !ok {
		b.logger.Debug("device command unsupported", logging.String("opcode", op.String()))
		return ErrUnsupported
	}

	buf := make([]byte, len(data))
	if op.IsSend() {
		copy(buf, data)
	}
	var session int32
	if agid != nil {
		session = *agid
	}

	err := b.call(func() error {
		return cmd.DeviceCommand(op, buf, &session, lba)
	})
	if err != nil {
		return fmt.Errorf("blockio: device command %s: %w", op, err)
	}
	if !op.IsSend() {
		copy(data, buf)
	}
	if agid != nil {
		*agid = session
	}
	return nil
}
