package storage

import (
	"math"
	"strconv"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count in binary units with at most two
// decimals and trailing zeros dropped: 1536 is "1.5 KB".
func FormatBytes(n int64) string {
	return FormatBytesPrec(n, 2)
}

// FormatBytesPrec is FormatBytes with a chosen number of decimals.
func FormatBytesPrec(n int64, decimals int) string {
	if n == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}

	abs := math.Abs(float64(n))
	i := int(math.Floor(math.Log(abs) / math.Log(1024)))
	i = max(0, min(i, len(byteUnits)-1))

	v := float64(n) / math.Pow(1024, float64(i))
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + byteUnits[i]
}
