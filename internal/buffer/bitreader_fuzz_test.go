package buffer

import "testing"

func FuzzBitReader(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add([]byte{0xFF, 0x00, 0x00, 0x01})
	f.Add([]byte{0x00, 0x00, 0x03, 0x00, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<20 {
			return
		}
		br := NewBitReader(data)
		if len(data) == 0 {
			_, _ = br.ReadBit()
			return
		}

		ops := int(data[0] & 0x3F)
		idx := 1
		for i := 0; i < ops; i++ {
			var b byte
			if idx < len(data) {
				b = data[idx]
				idx++
			}
			switch b % 6 {
			case 0:
				_, _ = br.ReadBits(int(b % 33))
			case 1:
				_, _ = br.ReadUint8(int(b % 9))
			case 2:
				_ = br.SkipBits(int(b % 33))
			case 3:
				_, _ = br.ReadByte()
			case 4:
				_, _ = br.ReadBit()
			case 5:
				n := int(b % 4)
				if got, ok := br.ReadBytes(n); ok && len(got) != n {
					t.Fatalf("ReadBytes(%d) returned %d bytes", n, len(got))
				}
			}
		}
	})
}
