package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPadWidth is the minimum number of digits of the sequential part.
const DefaultPadWidth = 3

// FormatNumber renders prefix and sequence as "FE-007". Sequences wider than
// padWidth are printed in full.
func FormatNumber(prefix string, seq int64, padWidth int) string {
	if padWidth <= 0 {
		padWidth = DefaultPadWidth
	}
	return fmt.Sprintf("%s-%0*d", prefix, padWidth, seq)
}

// ParseNumber splits a formatted number back into prefix and sequence.
func ParseNumber(number string) (string, int64, error) {
	idx := strings.LastIndex(number, "-")
	if idx <= 0 || idx == len(number)-1 {
		return "", 0, fmt.Errorf("malformed document number %q", number)
	}
	seq, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed document number %q: %w", number, err)
	}
	return number[:idx], seq, nil
}
