package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMagic is returned when data does not start with a checkpoint header.
	ErrInvalidMagic = errors.New("checkpoint: invalid magic number")
	// ErrUnsupportedVersion is returned for checkpoints written by a newer format.
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported version")
	// ErrUnsupportedCompression is returned for unknown compression types.
	ErrUnsupportedCompression = errors.New("checkpoint: unsupported compression")
	// ErrCorrupt is returned when the payload cannot be decoded.
	ErrCorrupt = errors.New("checkpoint: corrupt payload")
	// ErrNoCheckpoint is returned by Latest when a run has no checkpoint.
	ErrNoCheckpoint = errors.New("checkpoint: no checkpoint found")
)

// ChecksumMismatchError reports a payload whose CRC32C differs from the header.
type ChecksumMismatchError struct {
	Want uint32
	Got  uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checkpoint: checksum mismatch: header %08x, payload %08x", e.Want, e.Got)
}

// Is reports whether target is ErrCorrupt.
func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrCorrupt }
