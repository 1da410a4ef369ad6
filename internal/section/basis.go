package section

import (
	"math"
	"strconv"
)

// DefaultMaxPerRow caps the number of items sharing one row.
const DefaultMaxPerRow = 4

// Basis returns the flex-basis utility class for a row holding count items.
func Basis(count, maxPerRow int) string {
	switch {
	case count <= 1:
		return "basis-full"
	case count == 2:
		return "basis-1/2"
	case count == 3:
		return "basis-1/3"
	}
	if maxPerRow <= 0 {
		maxPerRow = DefaultMaxPerRow
	}
	n := min(count, maxPerRow)
	pct := math.Round(100/float64(n)*100) / 100
	return "basis-[" + strconv.FormatFloat(pct, 'f', -1, 64) + "%]"
}
