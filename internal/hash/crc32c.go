package hash

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
)

// crc32cTable is pre-computed for CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// Labels fingerprints a cluster assignment vector.
// Equal vectors always produce equal fingerprints; the converse holds only
// with high probability, so callers needing exactness must compare the slices.
func Labels(labels []int) uint32 {
	h := crc32.New(crc32cTable)
	var buf [512]byte
	b := buf[:0]
	for _, l := range labels {
		b = binary.LittleEndian.AppendUint32(b, uint32(l))
		if len(b) == len(buf) {
			_, _ = h.Write(b)
			b = buf[:0]
		}
	}
	if len(b) > 0 {
		_, _ = h.Write(b)
	}
	return h.Sum32()
}
