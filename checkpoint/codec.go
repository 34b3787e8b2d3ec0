package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/maskedem"
	"github.com/hupe1980/maskedem/internal/hash"
)

const (
	// MagicNumber identifies checkpoint files (ASCII: "MKEM").
	MagicNumber = 0x4D4B454D
	// Version is the current checkpoint format version.
	Version = 1

	flagBest = 1 << 0
)

// Header is the fixed 32-byte checkpoint header.
type Header struct {
	Magic       uint32
	Version     uint16
	Compression Compression
	Flags       uint8
	RawSize     uint32
	PayloadSize uint32
	Checksum    uint32
	Reserved    [12]byte
}

// HeaderSize is the encoded size of Header.
const HeaderSize = 32

// Marshal encodes s with compression c.
func Marshal(s *maskedem.Snapshot, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a checkpoint produced by Marshal.
func Unmarshal(data []byte) (*maskedem.Snapshot, error) {
	s, _, err := decode(bytes.NewReader(data))
	return s, err
}

// Encode writes s to w.
func Encode(w io.Writer, s *maskedem.Snapshot, c Compression) error {
	if s == nil {
		return fmt.Errorf("checkpoint: nil snapshot")
	}
	if len(s.Assignment) != s.NumPoints || (s.BestAssignment != nil && len(s.BestAssignment) != s.NumPoints) {
		return fmt.Errorf("checkpoint: assignment length does not match %d points", s.NumPoints)
	}
	raw :=appendSnapshot(nil, s)
	if len(raw) > math.MaxUint32 {
		return fmt.Errorf("checkpoint: payload of %d bytes too large", len(raw))
	}

	stored, used, err := compress(raw, c)
	if err != nil {
		return err
	}

	h := Header{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: used,
		RawSize:     uint32(len(raw)),
		PayloadSize: uint32(len(stored)),
		Checksum:    hash.CRC32C(raw),
	}
	if s.BestAssignment != nil {
		h.Flags |= flagBest
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Decode reads one checkpoint from r.
func Decode(r io.Reader) (*maskedem.Snapshot, error) {
	s, _, err := decode(r)
	return s, err
}

// ReadHeader reads and validates the header of a checkpoint.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if h.Magic != MagicNumber {
		return h, ErrInvalidMagic
	}
	if h.Version == 0 || h.Version > Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

func decode(r io.Reader) (*maskedem.Snapshot, Header, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, h, err
	}

	stored := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, h, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}
	raw, err := decompress(stored, h.Compression, int(h.RawSize))
	if err != nil {
		return nil, h, err
	}
	if sum := hash.CRC32C(raw); sum != h.Checksum {
		return nil, h, &ChecksumMismatchError{Want: h.Checksum, Got: sum}
	}

	s, err := readSnapshot(raw, h.Flags&flagBest != 0)
	if err != nil {
		return nil, h, err
	}
	return s, h, nil
}

func appendSnapshot(b []byte, s *maskedem.Snapshot) []byte {
	b = binary.AppendUvarint(b, uint64(len(s.RunID)))
	b = append(b, s.RunID...)
	for _, v := range []int{s.NumPoints, s.NumFeatures, s.Iteration, s.LastSplit, s.NextID, int(s.State)} {
		b = binary.AppendUvarint(b, uint64(v))
	}
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(s.BestScore))
	for _, id := range s.Assignment {
		b = binary.AppendUvarint(b, uint64(id))
	}
	for _, id := range s.BestAssignment {
		b = binary.AppendUvarint(b, uint64(id))
	}
	return b
}

// payloadReader decodes uvarints and fixed fields from a payload,
// remembering the first error.
type payloadReader struct {
	buf []byte
	err error
}

func (p *payloadReader) uvarint() uint64 {
	if p.err != nil {
		return 0
	}
	v, n := binary.Uvarint(p.buf)
	if n <= 0 {
		p.err = fmt.Errorf("%w: truncated varint", ErrCorrupt)
		return 0
	}
	p.buf = p.buf[n:]
	return v
}

func (p *payloadReader) int() int {
	v := p.uvarint()
	if v > math.MaxInt32 {
		if p.err == nil {
			p.err = fmt.Errorf("%w: value %d out of range", ErrCorrupt, v)
		}
		return 0
	}
	return int(v)
}

func (p *payloadReader) bytes(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n > len(p.buf) {
		p.err = fmt.Errorf("%w: truncated payload", ErrCorrupt)
		return nil
	}
	out := p.buf[:n]
	p.buf = p.buf[n:]
	return out
}

func (p *payloadReader) ints(n int) []int {
	if p.err != nil {
		return nil
	}
	// Every uvarint takes at least one byte.
	if n > len(p.buf) {
		p.err = fmt.Errorf("%w: truncated assignment", ErrCorrupt)
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = p.int()
	}
	return out
}

func readSnapshot(raw []byte, hasBest bool) (*maskedem.Snapshot, error) {
	p := &payloadReader{buf: raw}
	s := &maskedem.Snapshot{}

	s.RunID = string(p.bytes(p.int()))
	s.NumPoints = p.int()
	s.NumFeatures = p.int()
	s.Iteration = p.int()
	s.LastSplit = p.int()
	s.NextID = p.int()
	s.State = maskedem.State(p.int())
	if b := p.bytes(8); b != nil {
		s.BestScore = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	s.Assignment = p.ints(s.NumPoints)
	if hasBest {
		s.BestAssignment = p.ints(s.NumPoints)
	}
	if p.err != nil {
		return nil, p.err
	}
	if len(p.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(p.buf))
	}
	return s, nil
}
