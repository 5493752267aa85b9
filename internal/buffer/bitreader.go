package buffer

// BitReader reads MSB-first bits from a byte slice.
// IFO attribute records pack several sub-byte fields per byte; this reader walks them
// in declaration order.
type BitReader struct {
	data    []byte
	bytePos int
	bitPos  uint8
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (r *BitReader) ReadBit() (uint64, bool) {
	if r.bytePos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.bytePos]
	bit := (b >> (7 - r.bitPos)) & 0x01
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.bytePos++
	}
	return uint64(bit), true
}

func (r *BitReader) ReadBits(n int) (uint64, bool) {
	if n <= 0 {
		return 0, true
	}
	var v uint64
	for i := 0; i < n; i++ {
		bit, ok := r.ReadBit()
		if !ok {
			return 0, false
		}
		v = (v << 1) | bit
	}
	return v, true
}

// ReadUint8 reads n (at most 8) bits as a byte-sized field.
func (r *BitReader) ReadUint8(n int) (uint8, bool) {
	if n > 8 {
		n = 8
	}
	v, ok := r.ReadBits(n)
	return uint8(v), ok
}

func (r *BitReader) ReadByte() (byte, bool) {
	if r.bitPos == 0 {
		if r.bytePos >= len(r.data) {
			return 0, false
		}
		b := r.data[r.bytePos]
		r.bytePos++
		return b, true
	}
	val, ok := r.ReadBits(8)
	if !ok {
		return 0, false
	}
	return byte(val), true
}

// ReadBytes reads n whole bytes. The reader must be byte aligned.
func (r *BitReader) ReadBytes(n int) ([]byte, bool) {
	if r.bitPos != 0 || n < 0 || r.bytePos+n > len(r.data) {
		return nil, false
	}
	b := r.data[r.bytePos : r.bytePos+n]
	r.bytePos += n
	return b, true
}

func (r *BitReader) SkipBits(n int) bool {
	_, ok := r.ReadBits(n)
	return ok
}
