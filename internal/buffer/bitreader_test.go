package buffer

import (
	"bytes"
	"testing"
)

func TestBitReader_ReadBits(t *testing.T) {
	// Test data: 0b11010010 0b01101110
	data := []byte{0xD2, 0x6E}
	br := NewBitReader(data)

	tests := []struct {
		name     string
		bits     int
		expected uint64
	}{
		{"Read 3 bits", 3, 0b110},
		{"Read 5 bits", 5, 0b10010},
		{"Read 4 bits", 4, 0b0110},
		{"Read 4 bits", 4, 0b1110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := br.ReadBits(tt.bits)
			if !ok {
				t.Fatalf("ReadBits(%d) failed", tt.bits)
			}
			if got != tt.expected {
				t.Errorf("ReadBits(%d) = %b, want %b", tt.bits, got, tt.expected)
			}
		})
	}

	if _, ok := br.ReadBits(1); ok {
		t.Fatalf("ReadBits past end should fail")
	}
}

func TestBitReader_AudioAttributeLayout(t *testing.T) {
	// audio_format=6 (3b), multichannel=0 (1b), lang_type=1 (2b), app_mode=0 (2b)
	// quantization=0 (2b), sample_frequency=0 (2b), unknown (1b), channels=5 (3b)
	br := NewBitReader([]byte{0xC4, 0x05, 'e', 'n'})

	fields := []struct {
		bits int
		want uint8
	}{
		{3, 6}, {1, 0}, {2, 1}, {2, 0},
		{2, 0}, {2, 0}, {1, 0}, {3, 5},
	}
	for i, f := range fields {
		got, ok := br.ReadUint8(f.bits)
		if !ok {
			t.Fatalf("field %d: read failed", i)
		}
		if got != f.want {
			t.Errorf("field %d = %d, want %d", i, got, f.want)
		}
	}

	lang, ok := br.ReadBytes(2)
	if !ok || !bytes.Equal(lang, []byte("en")) {
		t.Fatalf("ReadBytes(2) = %q, %v", lang, ok)
	}
	if _, ok := br.ReadByte(); ok {
		t.Fatalf("ReadByte past end should fail")
	}
}

func TestBitReader_ReadBytesRequiresAlignment(t *testing.T) {
	br := NewBitReader([]byte{0x01, 0x02, 0x03})
	br.SkipBits(4)
	if _, ok := br.ReadBytes(1); ok {
		t.Fatalf("ReadBytes on unaligned reader should fail")
	}
	br.SkipBits(4)
	got, ok := br.ReadBytes(2)
	if !ok || !bytes.Equal(got, []byte{0x02, 0x03}) {
		t.Fatalf("ReadBytes after realigning = %v, %v", got, ok)
	}
	if _, ok := br.ReadBytes(1); ok {
		t.Fatalf("ReadBytes past end should fail")
	}
}

func TestBitReader_MixedBitByteReading(t *testing.T) {
	data := []byte{0xFF, 0x00, 0xAA, 0x55}
	br := NewBitReader(data)

	bits, ok := br.ReadBits(4)
	if !ok || bits != 0xF {
		t.Fatalf("ReadBits(4) = %x, %v", bits, ok)
	}

	// Straddles the first two bytes.
	b, ok := br.ReadByte()
	if !ok || b != 0xF0 {
		t.Fatalf("ReadByte() after ReadBits(4) = %x, %v", b, ok)
	}

	br.SkipBits(4)
	b, ok = br.ReadByte()
	if !ok || b != 0xAA {
		t.Fatalf("ReadByte() on a byte boundary = %x, %v", b, ok)
	}
}
