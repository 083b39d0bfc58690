package hexgrid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Validation failures are sentinel errors so callers can map them onto exit
// codes or HTTP statuses.
var (
	ErrMissingBBox     = errors.New("hexgrid: bbox is required")
	ErrBBoxShape       = errors.New("hexgrid: bbox must have exactly four values")
	ErrBBoxValue       = errors.New("hexgrid: bbox values must be finite numbers")
	ErrMissingCellSide = errors.New("hexgrid: cell side is required")
	ErrCellSide        = errors.New("hexgrid: cell side must be a positive finite number")
	ErrUnits           = errors.New("hexgrid: unknown units")
)

// ParseBBox parses a "west,south,east,north" string into a bound.
func ParseBBox(s string) (orb.Bound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return orb.Bound{}, ErrMissingBBox
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("%w: got %d", ErrBBoxShape, len(parts))
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%w: %q", ErrBBoxValue, part)
		}
		vals[i] = v
	}
	return BoundFrom(vals)
}

// BoundFrom builds a bound from [west, south, east, north]. The west<east,
// south<north ordering is the caller's contract and is not checked.
func BoundFrom(vals []float64) (orb.Bound, error) {
	if vals == nil {
		return orb.Bound{}, ErrMissingBBox
	}
	if len(vals) != 4 {
		return orb.Bound{}, fmt.Errorf("%w: got %d", ErrBBoxShape, len(vals))
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return orb.Bound{}, fmt.Errorf("%w: got %v", ErrBBoxValue, v)
		}
	}
	return orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}, nil
}

// ParseCellSide parses the cell side argument the way the CLI and HTTP
// surfaces receive it. Positivity is checked by New, not here.
func ParseCellSide(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMissingCellSide
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrCellSide, s)
	}
	return v, nil
}

func checkBound(b orb.Bound) error {
	for _, v := range [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: got %v", ErrBBoxValue, v)
		}
	}
	return nil
}
