package util

import "testing"

func TestCursorReaders(t *testing.T) {
	data := []byte{0x12, 0x34, 0xDE, 0xAD, 0xBE, 0xEF, 'D', 'V', 'D'}
	pos := 0
	if got := ReadUint16(data, &pos); got != 0x1234 {
		t.Fatalf("ReadUint16=%#x want 0x1234", got)
	}
	if got := ReadUint32(data, &pos); got != 0xDEADBEEF {
		t.Fatalf("ReadUint32=%#x want 0xdeadbeef", got)
	}
	if got := ReadString(data, 8, &pos); got != "DVD" {
		t.Fatalf("ReadString=%q want DVD (clamped)", got)
	}
	if pos != len(data) {
		t.Fatalf("pos=%d want %d", pos, len(data))
	}
	if got := ReadByte(data, &pos); got != 0 || pos != len(data) {
		t.Fatalf("ReadByte past end=%d pos=%d", got, pos)
	}
	if got := ReadUint32(data, &pos); got != 0 {
		t.Fatalf("ReadUint32 past end=%d", got)
	}
}

func TestFixedOffsetReaders(t *testing.T) {
	data := []byte{0, 0, 0x01, 0x02, 0x03, 0x04}
	if got := Uint16At(data, 2); got != 0x0102 {
		t.Fatalf("Uint16At=%#x", got)
	}
	if got := Uint32At(data, 2); got != 0x01020304 {
		t.Fatalf("Uint32At=%#x", got)
	}
	if got := Uint32At(data, 4); got != 0 {
		t.Fatalf("Uint32At out of range=%#x", got)
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms         int64
		withMillis bool
		want       string
	}{
		{0, false, "0:00:00"},
		{3723000, false, "1:02:03"},
		{3723033, true, "1:02:03.033"},
		{59999, true, "0:00:59.999"},
	}
	for _, tt := range tests {
		if got := FormatMillis(tt.ms, tt.withMillis); got != tt.want {
			t.Errorf("FormatMillis(%d,%v)=%q want %q", tt.ms, tt.withMillis, got, tt.want)
		}
	}
}
