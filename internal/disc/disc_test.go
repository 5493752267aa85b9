package disc

import (
	"bytes"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/fs/udf/udftest"
	"github.com/s0up4200/go-dvdinfo/internal/ifo/ifotest"
)

func testDisc() ifotest.Disc {
	return ifotest.Disc{
		ProviderID: "TEST DISC",
		Titles:     []ifotest.Title{{TitleSet: 1, TitleInSet: 1, Chapters: 1}},
		TitleSets: []ifotest.TitleSet{{
			Chains: []ifotest.Chain{{
				ProgramMap: []int{1},
				Cells:      []ifotest.Cell{{First: 0, Last: 9, Seconds: 10}},
			}},
		}},
	}
}

func writeDisc(t *testing.T, sectors, split int) string {
	t.Helper()
	root := t.TempDir()
	if err := ifotest.WriteVideoTS(root, testDisc(), map[int][]byte{1: ifotest.Payload(sectors)}, split); err != nil {
		t.Fatalf("WriteVideoTS: %v", err)
	}
	return root
}

func TestOpenDirectory(t *testing.T) {
	root := writeDisc(t, 4, 0)

	for _, path := range []string{root, filepath.Join(root, "VIDEO_TS")} {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%s): %v", path, err)
		}
		data, err := s.ReadInfoFile(0)
		if err != nil {
			t.Fatalf("ReadInfoFile(0): %v", err)
		}
		if !bytes.HasPrefix(data, []byte("DVDVIDEO-VMG")) {
			t.Fatalf("VMG identifier missing")
		}
		if s.ID() == "" || s.Provider() != nil {
			t.Fatalf("ID()=%q Provider()=%v", s.ID(), s.Provider())
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func TestOpenRejectsNonDisc(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrInvalidDisc) {
		t.Fatalf("empty directory err=%v, want ErrInvalidDisc", err)
	}

	img := filepath.Join(t.TempDir(), "zero.iso")
	if err := os.WriteFile(img, make([]byte, 600*blockio.SectorSize), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(img); !errors.Is(err, ErrInvalidDisc) {
		t.Fatalf("zero image err=%v, want ErrInvalidDisc", err)
	}

	if _, err := OpenProvider(nil); !errors.Is(err, ErrInvalidDisc) {
		t.Fatalf("nil provider err=%v, want ErrInvalidDisc", err)
	}
}

func TestReadSectorsUnsupportedOnDirectory(t *testing.T) {
	s, err := Open(writeDisc(t, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.ReadSectors(0, make([]byte, blockio.SectorSize))
	if !errors.Is(err, blockio.ErrUnsupported) {
		t.Fatalf("ReadSectors err=%v, want ErrUnsupported", err)
	}
}

func TestAuthenticationUnavailableWithoutCommandChannel(t *testing.T) {
	s, err := Open(writeDisc(t, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := s.AuthenticationAvailable()
	if err != nil || ok {
		t.Fatalf("directory: AuthenticationAvailable()=%v, %v", ok, err)
	}
	s.Close()

	img, err := udftest.VideoTS("AUTH", testDisc(), map[int][]byte{1: ifotest.Payload(1)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "disc.iso")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ok, err = s.AuthenticationAvailable()
	if err != nil || ok {
		t.Fatalf("image: AuthenticationAvailable()=%v, %v", ok, err)
	}

	s.Close()
	if _, err := s.AuthenticationAvailable(); !errors.Is(err, ErrClosed) {
		t.Fatalf("closed session err=%v, want ErrClosed", err)
	}
}

func TestReadInfoFileFallsBackToBackup(t *testing.T) {
	root := writeDisc(t, 1, 0)
	dir := filepath.Join(root, "VIDEO_TS")
	good, err := os.ReadFile(filepath.Join(dir, "VTS_01_0.IFO"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "VTS_01_0.BUP"), good, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "VTS_01_0.IFO"), make([]byte, len(good)), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	data, err := s.ReadInfoFile(1)
	if err != nil {
		t.Fatalf("ReadInfoFile(1): %v", err)
	}
	if !bytes.Equal(data, good) {
		t.Fatalf("backup contents not returned")
	}

	if _, err := s.ReadInfoFile(2); err == nil {
		t.Fatalf("ReadInfoFile(2) succeeded for a missing title set")
	}
	if _, err := s.ReadInfoFile(100); err == nil {
		t.Fatalf("ReadInfoFile(100) accepted an out-of-range title set")
	}
}

func TestMissingVMGUsesBackup(t *testing.T) {
	root := writeDisc(t, 1, 0)
	dir := filepath.Join(root, "VIDEO_TS")
	if err := os.Rename(filepath.Join(dir, "VIDEO_TS.IFO"), filepath.Join(dir, "VIDEO_TS.BUP")); err != nil {
		t.Fatal(err)
	}

	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open with only VIDEO_TS.BUP: %v", err)
	}
	defer s.Close()
	if _, err := s.ReadInfoFile(0); err != nil {
		t.Fatalf("ReadInfoFile(0): %v", err)
	}
}

func TestTitleSetDataSpansSplitVOBs(t *testing.T) {
	const sectors = 10
	s, err := Open(writeDisc(t, sectors, 3))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	d, err := s.OpenTitleSetData(1)
	if err != nil {
		t.Fatalf("OpenTitleSetData: %v", err)
	}
	defer d.Close()

	if d.Blocks() != sectors {
		t.Fatalf("Blocks()=%d want %d", d.Blocks(), sectors)
	}

	buf := make([]byte, 5*blockio.SectorSize)
	n, err := d.ReadBlocks(2, buf)
	if err != nil || n != len(buf) {
		t.Fatalf("ReadBlocks(2)=%d, %v", n, err)
	}
	want := ifotest.Payload(sectors)[2*blockio.SectorSize : 7*blockio.SectorSize]
	if !bytes.Equal(buf, want) {
		t.Fatalf("data read across VOB parts differs")
	}

	n, err = d.ReadBlocks(8, buf)
	if err != nil || n != 2*blockio.SectorSize {
		t.Fatalf("short read at end=%d, %v", n, err)
	}
	if _, err := d.ReadBlocks(sectors, buf); err == nil {
		t.Fatalf("read past end returned no error")
	}
	if _, err := d.ReadBlocks(0, make([]byte, 100)); err == nil {
		t.Fatalf("unaligned buffer accepted")
	}

	if _, err := s.OpenTitleSetData(2); !errors.Is(err, iofs.ErrNotExist) {
		t.Fatalf("missing title set err=%v, want ErrNotExist", err)
	}
}

func TestContentSetOutlivesSession(t *testing.T) {
	s, err := Open(writeDisc(t, 6, 0))
	if err != nil {
		t.Fatal(err)
	}
	cs, err := s.OpenContentSet(1)
	if err != nil {
		t.Fatalf("OpenContentSet: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("session Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second session Close: %v", err)
	}
	if _, err := s.OpenContentSet(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("OpenContentSet after close err=%v, want ErrClosed", err)
	}

	dst := make([]byte, 2*blockio.SectorSize)
	n, err := cs.ReadBlocks(4, 2, dst)
	if err != nil || n != len(dst) {
		t.Fatalf("ReadBlocks after session close=%d, %v", n, err)
	}
	if dst[0] != 4 || dst[blockio.SectorSize] != 5 {
		t.Fatalf("wrong sectors returned")
	}

	if n, err := cs.ReadBlocks(6, 1, dst); n != 0 || err != nil {
		t.Fatalf("ReadBlocks at end=%d, %v want 0, nil", n, err)
	}
	if _, err := cs.ReadBlocks(0, 0, dst); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("zero count err=%v, want ErrInvalidCount", err)
	}

	if err := cs.Close(); err != nil {
		t.Fatalf("content set Close: %v", err)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("second content set Close: %v", err)
	}
	if _, err := cs.ReadBlocks(0, 1, dst); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadBlocks after close err=%v, want ErrClosed", err)
	}
}

func TestContentSetTruncatesToDestination(t *testing.T) {
	s, err := Open(writeDisc(t, 4, 0))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	cs, err := s.OpenContentSet(1)
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Close()

	dst := make([]byte, 100)
	n, err := cs.ReadBlocks(1, 2, dst)
	if err != nil || n != len(dst) {
		t.Fatalf("ReadBlocks=%d, %v want %d", n, err, len(dst))
	}
	if dst[0] != 1 || dst[99] != 1 {
		t.Fatalf("wrong data copied")
	}
}

func TestWithLockRejectsSecondHolder(t *testing.T) {
	root := writeDisc(t, 1, 0)
	lockPath := filepath.Join(t.TempDir(), "drive.lock")

	first, err := Open(root, WithLock(lockPath))
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := Open(root, WithLock(lockPath)); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Open err=%v, want ErrLocked", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	again, err := Open(root, WithLock(lockPath))
	if err != nil {
		t.Fatalf("Open after release: %v", err)
	}
	again.Close()
}

func TestDriveStatusString(t *testing.T) {
	if DriveDiscOK.String() != "disc ok" || DriveStatus(9).String() != "unknown (9)" {
		t.Fatalf("unexpected DriveStatus strings")
	}
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"DEVNAME": "/dev/sr1"}, "/dev/sr1"},
		{map[string]string{"DEVNAME": "sr0"}, "/dev/sr0"},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/block/sr2"}, "/dev/sr2"},
		{map[string]string{}, ""},
	}
	for _, tt := range tests {
		if got := deviceNameFromEnv(tt.env); got != tt.want {
			t.Errorf("deviceNameFromEnv(%v)=%q want %q", tt.env, got, tt.want)
		}
	}
}

func TestOpenImageFile(t *testing.T) {
	const sectors = 7
	img, err := udftest.VideoTS("IMAGE_TEST", testDisc(), map[int][]byte{1: ifotest.Payload(sectors)}, 3)
	if err != nil {
		t.Fatalf("udftest.VideoTS: %v", err)
	}
	path := filepath.Join(t.TempDir(), "disc.iso")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(image): %v", err)
	}
	defer s.Close()

	if s.VolumeLabel() != "IMAGE_TEST" || s.Provider() == nil {
		t.Fatalf("VolumeLabel()=%q Provider()=%v", s.VolumeLabel(), s.Provider())
	}
	data, err := s.ReadInfoFile(1)
	if err != nil || !bytes.HasPrefix(data, []byte("DVDVIDEO-VTS")) {
		t.Fatalf("ReadInfoFile(1)=%q, %v", data[:min(len(data), 12)], err)
	}

	raw := make([]byte, blockio.SectorSize)
	if _, err := s.ReadSectors(16, raw); err != nil || !bytes.Equal(raw[1:6], []byte("BEA01")) {
		t.Fatalf("ReadSectors(16)=%q, %v", raw[1:6], err)
	}

	cs, err := s.OpenContentSet(1)
	if err != nil {
		t.Fatalf("OpenContentSet: %v", err)
	}
	defer cs.Close()
	if cs.Blocks() != sectors {
		t.Fatalf("Blocks()=%d want %d", cs.Blocks(), sectors)
	}

	var got []byte
	buf := make([]byte, 2*blockio.SectorSize)
	for start := int64(0); ; start += 2 {
		n, err := cs.ReadBlocks(start, 2, buf)
		if err != nil {
			t.Fatalf("ReadBlocks(%d): %v", start, err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, ifotest.Payload(sectors)) {
		t.Fatalf("content set returned %d bytes that differ from the VOB payload", len(got))
	}
}
