package util

import (
	"fmt"
	"math"
)

// FormatSize renders a byte count with binary units, keeping at most
// three decimal places and none for exact values.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	exp := int(math.Log(float64(size)) / math.Log(unit))
	if exp >= len(units) {
		exp = len(units) - 1
	}

	// Integer arithmetic keeps the truncation stable across platforms.
	div := int64(math.Pow(unit, float64(exp)))
	value := size / div
	if size%div == 0 {
		return fmt.Sprintf("%d %s", value, units[exp])
	}

	remainder := size % div
	decimal := (remainder * 1000) / div

	switch {
	case decimal%10 != 0:
		return fmt.Sprintf("%d.%03d %s", value, decimal, units[exp])
	case decimal%100 != 0:
		return fmt.Sprintf("%d.%02d %s", value, decimal/10, units[exp])
	default:
		return fmt.Sprintf("%d.%d %s", value, decimal/100, units[exp])
	}
}
