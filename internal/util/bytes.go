package util

import "fmt"

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes renders a byte count as a short human-readable string,
// for example "99 B", "1.5 KiB", "98.9 GiB".
func FormatBytes(b int64) string {
	v := float64(b)
	unitIdx := 0
	for v >= 1024 && unitIdx < len(byteUnits)-1 {
		v /= 1024
		unitIdx++
	}
	if unitIdx == 0 {
		return fmt.Sprintf("%d %s", b, byteUnits[0])
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[unitIdx])
}
