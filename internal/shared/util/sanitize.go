package util

import (
	"errors"
	"strings"
)

// ErrInvalidSegment is returned for blank, traversing or oversized identifiers.
var ErrInvalidSegment = errors.New("invalid key segment")

const maxSegmentLen = 200

// SanitizeKeySegment turns an analysis or assessment id into a single object
// store path segment. Legacy "analysis-<ms>" ids pass through unchanged.
func SanitizeKeySegment(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" || len(s) > maxSegmentLen || strings.Contains(s, "..") {
		return "", ErrInvalidSegment
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s), nil
}
