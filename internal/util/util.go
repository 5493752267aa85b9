package util

import (
	"fmt"
	"time"
)

// Big-endian cursor readers used by the IFO table parsers. Out-of-range reads
// return zero values and leave the cursor unchanged.

func ReadString(data []byte, count int, pos *int) string {
	return string(ReadBytes(data, count, pos))
}

func ReadBytes(data []byte, count int, pos *int) []byte {
	if *pos > len(data) {
		return nil
	}
	if *pos+count > len(data) {
		count = len(data) - *pos
		if count < 0 {
			count = 0
		}
	}
	val := data[*pos : *pos+count]
	*pos += count
	return val
}

func ReadUint16(data []byte, pos *int) uint16 {
	if *pos+2 > len(data) {
		return 0
	}
	val := uint16(data[*pos])<<8 | uint16(data[*pos+1])
	*pos += 2
	return val
}

func ReadUint32(data []byte, pos *int) uint32 {
	if *pos+4 > len(data) {
		return 0
	}
	val := uint32(data[*pos])<<24 | uint32(data[*pos+1])<<16 | uint32(data[*pos+2])<<8 | uint32(data[*pos+3])
	*pos += 4
	return val
}

func ReadByte(data []byte, pos *int) byte {
	if *pos >= len(data) {
		return 0
	}
	b := data[*pos]
	*pos += 1
	return b
}

// Uint16At and Uint32At read at a fixed offset without a cursor.
func Uint16At(data []byte, off int) uint16 {
	return ReadUint16(data, &off)
}

func Uint32At(data []byte, off int) uint32 {
	return ReadUint32(data, &off)
}

// FormatMillis renders a millisecond count as h:mm:ss[.mmm].
func FormatMillis(ms int64, withMillis bool) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if withMillis {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms%1000)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
