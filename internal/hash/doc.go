// Package hash provides CRC32-Castagnoli helpers used for checkpoint
// integrity and for fingerprinting cluster assignments.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
//
// Go's crc32 package uses SSE4.2 / ARM CRC instructions when available.
package hash
