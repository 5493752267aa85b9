package blockio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDevice struct {
	data      []byte
	blockSize int
	reads     int
	failAt    int64
	cmds      []Opcode
	reply     []byte
	cmdErr    error
}

func (d *memDevice) ReadBlocks(lba int64, p []byte) (int, error) {
	d.reads++
	if d.failAt >= 0 && lba == d.failAt {
		return 0, errors.New("medium error")
	}
	off := lba * int64(d.blockSize)
	if off >= int64(len(d.data)) {
		return 0, nil
	}
	return copy(p, d.data[off:]), nil
}

func (d *memDevice) BlockSize() int { return d.blockSize }

func (d *memDevice) DeviceCommand(op Opcode, data []byte, agid *int32, lba uint32) error {
	d.cmds = append(d.cmds, op)
	if d.cmdErr != nil {
		copy(data, d.reply)
		return d.cmdErr
	}
	if op.IsSend() {
		d.reply = append([]byte(nil), data...)
	} else {
		copy(data, d.reply)
	}
	*agid = *agid + 1
	return nil
}

type plainDevice struct{ data []byte }

func (d *plainDevice) ReadBlocks(lba int64, p []byte) (int, error) {
	off := lba * SectorSize
	if off >= int64(len(d.data)) {
		return 0, nil
	}
	return copy(p, d.data[off:]), nil
}

type countingContext struct{ enter, leave int }

func (c *countingContext) Enter() (func(), error) {
	c.enter++
	return func() { c.leave++ }, nil
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestBindDefaultsBlockSize(t *testing.T) {
	b, err := Bind(&memDevice{blockSize: 0, failAt: -1})
	require.NoError(t, err)
	assert.Equal(t, SectorSize, b.BlockSize())

	b, err = Bind(&memDevice{blockSize: 512, failAt: -1})
	require.NoError(t, err)
	assert.Equal(t, 512, b.BlockSize())

	_, err = Bind(nil)
	require.Error(t, err)
}

func TestBindingAlignedRead(t *testing.T) {
	data := pattern(4 * SectorSize)
	b, err := Bind(&memDevice{data: data, blockSize: SectorSize, failAt: -1})
	require.NoError(t, err)

	require.NoError(t, b.Seek(SectorSize))
	buf := make([]byte, 2*SectorSize)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, data[SectorSize:3*SectorSize], buf)
	assert.Equal(t, int64(3*SectorSize), b.Position())

	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, SectorSize, n)

	n, err = b.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestBindingRealignsUnalignedRead(t *testing.T) {
	data := pattern(3 * SectorSize)
	dev := &memDevice{data: data, blockSize: SectorSize, failAt: -1}
	b, err := Bind(dev)
	require.NoError(t, err)

	require.NoError(t, b.Seek(100))
	buf := make([]byte, SectorSize)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, SectorSize, n)
	assert.Equal(t, data[100:100+SectorSize], buf)
	assert.Equal(t, int64(100+SectorSize), b.Position())
	assert.Equal(t, 1, dev.reads)
}

func TestBindingReadErrorWrapped(t *testing.T) {
	b, err := Bind(&memDevice{data: pattern(2 * SectorSize), blockSize: SectorSize, failAt: 1})
	require.NoError(t, err)
	require.NoError(t, b.Seek(SectorSize))
	_, err = b.Read(make([]byte, SectorSize))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medium error")
}

func TestBindingExecContextWrapsEveryCall(t *testing.T) {
	ec := &countingContext{}
	b, err := Bind(&memDevice{data: pattern(2 * SectorSize), blockSize: SectorSize, failAt: -1}, WithExecContext(ec))
	require.NoError(t, err)
	_, err = b.Read(make([]byte, SectorSize))
	require.NoError(t, err)
	var agid int32
	require.NoError(t, b.DeviceCommand(ReportAGID, nil, &agid, 0))

	assert.Equal(t, 3, ec.enter)
	assert.Equal(t, ec.enter, ec.leave)
}

func TestBindingDeviceCommandCopyDirection(t *testing.T) {
	dev := &memDevice{blockSize: SectorSize, failAt: -1}
	b, err := Bind(dev)
	require.NoError(t, err)

	agid := int32(4)
	challenge := []byte{1, 2, 3, 4}
	require.NoError(t, b.DeviceCommand(SendChallenge, challenge, &agid, 0))
	assert.Equal(t, []byte{1, 2, 3, 4}, dev.reply)
	assert.Equal(t, int32(5), agid)

	out := make([]byte, 4)
	require.NoError(t, b.DeviceCommand(ReportKey1, out, &agid, 0))
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
	assert.Equal(t, int32(6), agid)

	dev.cmdErr = errors.New("check condition")
	dev.reply = []byte{9, 9, 9, 9}
	out = make([]byte, 4)
	err = b.DeviceCommand(ReportTitleKey, out, &agid, 10)
	require.Error(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, out, "report payload must not be copied back on failure")
	assert.Equal(t, int32(6), agid)
}

func TestBindingOptionalCapabilities(t *testing.T) {
	b, err := Bind(&plainDevice{data: pattern(SectorSize)})
	require.NoError(t, err)

	var agid int32
	assert.ErrorIs(t, b.DeviceCommand(ReportAGID, nil, &agid, 0), ErrUnsupported)
	_, err = b.ReadVector([][]byte{make([]byte, SectorSize)})
	assert.ErrorIs(t, err, ErrUnsupported)

	n, err := b.Read(make([]byte, SectorSize))
	require.NoError(t, err, "unsupported capabilities must not break reads")
	assert.Equal(t, SectorSize, n)
}

func TestFileProviderAndSectorReader(t *testing.T) {
	data := pattern(5 * SectorSize)
	path := filepath.Join(t.TempDir(), "disc.iso")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fp, err := OpenFile(path)
	require.NoError(t, err)
	defer fp.Close()
	assert.Equal(t, int64(len(data)), fp.Size())
	assert.ErrorIs(t, fp.DeviceCommand(ReportAGID, nil, nil, 0), ErrUnsupported)

	sr := NewSectorReader(fp)
	assert.Equal(t, int64(5), sr.Sectors())

	buf := make([]byte, 2*SectorSize)
	n, err := sr.ReadSectors(2, buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.True(t, bytes.Equal(data[2*SectorSize:4*SectorSize], buf))

	n, err = sr.ReadSectors(4, buf)
	require.NoError(t, err)
	assert.Equal(t, SectorSize, n)

	_, err = sr.ReadSectors(5, buf)
	assert.ErrorIs(t, err, io.EOF)

	_, err = sr.ReadSectors(0, make([]byte, 100))
	require.Error(t, err)
}

func TestFileProviderReadVector(t *testing.T) {
	data := pattern(3 * SectorSize)
	path := filepath.Join(t.TempDir(), "disc.iso")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fp, err := OpenFile(path)
	require.NoError(t, err)
	defer fp.Close()

	a, b := make([]byte, SectorSize), make([]byte, SectorSize)
	require.NoError(t, fp.Seek(SectorSize))
	n, err := fp.ReadVector([][]byte{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2*SectorSize, n)
	assert.Equal(t, data[SectorSize:2*SectorSize], a)
	assert.Equal(t, data[2*SectorSize:], b)
}
