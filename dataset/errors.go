package dataset

import (
	"errors"
	"fmt"
)

// ErrInvalidData is matched (via errors.Is) by every InvalidDataError.
var ErrInvalidData = errors.New("invalid data")

// InvalidDataError describes malformed input rejected at construction.
// Point and Feature are -1 when the problem is not tied to one of them.
type InvalidDataError struct {
	Point   int
	Feature int
	Reason  string
}

func (e *InvalidDataError) Error() string {
	switch {
	case e.Point >= 0 && e.Feature >= 0:
		return fmt.Sprintf("invalid data: point %d, feature %d: %s", e.Point, e.Feature, e.Reason)
	case e.Point >= 0:
		return fmt.Sprintf("invalid data: point %d: %s", e.Point, e.Reason)
	case e.Feature >= 0:
		return fmt.Sprintf("invalid data: feature %d: %s", e.Feature, e.Reason)
	default:
		return "invalid data: " + e.Reason
	}
}

// Is reports whether target is ErrInvalidData.
func (e *InvalidDataError) Is(target error) bool { return target == ErrInvalidData }
