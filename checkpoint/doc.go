// Package checkpoint encodes engine snapshots into a compact binary format
// and stores them in a blobstore.
//
// # Format
//
// A checkpoint is a 32-byte little-endian header followed by the payload:
//
//	Magic       uint32  "MKEM"
//	Version     uint16
//	Compression uint8   none, lz4 or zstd
//	Flags       uint8   bit 0: best assignment present
//	RawSize     uint32  uncompressed payload size
//	PayloadSize uint32  stored payload size
//	Checksum    uint32  CRC32C of the uncompressed payload
//	Reserved    [12]byte
//
// The payload holds the run id, counters and the assignment vectors as
// uvarints, which keeps checkpoints of small cluster ids compact even
// before compression.
//
// # Usage
//
//	name, err := checkpoint.Save(ctx, store, eng.Snapshot(), checkpoint.CompressionZSTD)
//	snap, err := checkpoint.Load(ctx, store, name)
//	err = eng.Restore(snap)
package checkpoint
