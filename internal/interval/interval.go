// Package interval parses and rectifies 1-based member intervals used to
// subset playlist downloads.
//
// An interval expression takes one of four forms:
//
//	"3-7"  members 3 through 7, inclusive
//	"3-"   member 3 through the end
//	"-7"   the start through member 7
//	""     the full playlist
//
// Parse validates the expression shape; Rectify clamps the bounds against
// the actual playlist length. Rectification happens before any member page
// is fetched, so a bad interval never costs network traffic.
package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat reports a malformed interval expression: a
	// non-numeric bound, a zero or negative bound, or an upper bound below
	// the lower bound.
	ErrInvalidFormat = errors.New("invalid interval format")

	// ErrEmptySelection reports an interval that selects no members once
	// rectified against the playlist length.
	ErrEmptySelection = errors.New("interval selects no tracks")
)

// Spec is a parsed interval. Bounds are 1-based and inclusive; a zero bound
// is open ("from the start" for Lower, "to the end" for Upper).
type Spec struct {
	Lower int
	Upper int
}

// Parse parses an interval expression. The empty expression yields the open
// Spec covering the full range.
func Parse(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, nil
	}

	parts := strings.Split(expr, "-")
	if len(parts) != 2 {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, expr)
	}
	// "-" has neither bound; only the empty expression means the full range.
	if parts[0] == "" && parts[1] == "" {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, expr)
	}

	spec := Spec{}
	var err error
	if parts[0] != "" {
		if spec.Lower, err = parseBound(parts[0]); err != nil {
			return Spec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, expr)
		}
	}
	if parts[1] != "" {
		if spec.Upper, err = parseBound(parts[1]); err != nil {
			return Spec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, expr)
		}
	}

	if spec.Lower > 0 && spec.Upper > 0 && spec.Upper < spec.Lower {
		return Spec{}, fmt.Errorf("%w: %q: upper bound below lower bound", ErrInvalidFormat, expr)
	}

	return spec, nil
}

func parseBound(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("bound %d out of range", n)
	}
	return n, nil
}

// Rectify clamps the spec against a playlist of size members and returns the
// effective 1-based inclusive (start, end) pair, satisfying
// 1 <= start <= end <= size.
//
// An open lower bound becomes 1, an open or oversized upper bound becomes
// size. Rectify fails with ErrEmptySelection when the resulting range is
// empty, e.g. when the lower bound exceeds the playlist size.
func (s Spec) Rectify(size int) (start, end int, err error) {
	if size < 1 {
		return 0, 0, fmt.Errorf("%w: playlist is empty", ErrEmptySelection)
	}

	start = s.Lower
	if start < 1 {
		start = 1
	}
	end = s.Upper
	if end < 1 || end > size {
		end = size
	}

	if start > size || start > end {
		return 0, 0, fmt.Errorf("%w: %d-%d against %d tracks", ErrEmptySelection, start, end, size)
	}

	return start, end, nil
}
