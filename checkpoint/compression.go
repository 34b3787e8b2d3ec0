package checkpoint

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns the stored form of raw. LZ4 falls back to none when the
// block is incompressible.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if len(raw) == 0 {
		return raw, CompressionNone, nil
	}
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return raw, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(raw, nil), CompressionZSTD, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedCompression, uint8(c))
	}
}

// decompress restores a payload of rawSize bytes.
func decompress(stored []byte, c Compression, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(stored) != rawSize {
			return nil, fmt.Errorf("%w: payload size %d, want %d", ErrCorrupt, len(stored), rawSize)
		}
		return stored, nil
	case CompressionLZ4:
		raw := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != rawSize {
			return nil, fmt.Errorf("%w: decompressed size %d, want %d", ErrCorrupt, n, rawSize)
		}
		return raw, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		raw, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(raw) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size %d, want %d", ErrCorrupt, len(raw), rawSize)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, uint8(c))
	}
}
