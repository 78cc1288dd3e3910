package geo

import (
	"errors"
	"fmt"
)

// ErrInvalidPoint indicates coordinates outside the WGS84 range.
var ErrInvalidPoint = errors.New("geo: invalid coordinates")

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidPoint, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidPoint, p.Lng)
	}
	return nil
}
