package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBoreholeID = errors.New("borehole_id is required")
	ErrNegativeDepth     = errors.New("negative depth")
	ErrNegativeBlowCount = errors.New("negative blow count")
	ErrDuplicateBorehole = errors.New("borehole id already in use")
)

// ValidationPolicy holds optional input checks. The zero value accepts
// everything, which is the behavior of the data model itself.
type ValidationPolicy struct {
	RejectNegativeDepth     bool
	RejectNegativeBlows     bool
	RequireUniqueBoreholeID bool
}

// CheckReading applies the depth and blow count checks that are enabled.
func (p ValidationPolicy) CheckReading(depth float64, blowData BlowData) error {
	if p.RejectNegativeDepth && depth < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeDepth, depth)
	}
	if p.RejectNegativeBlows {
		for i, c := range blowData.counts {
			if c < 0 {
				return fmt.Errorf("%w: increment %d is %d", ErrNegativeBlowCount, i+1, c)
			}
		}
	}
	return nil
}
