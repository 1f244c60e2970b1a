package workflow

import (
	"fmt"
	"strconv"
)

// PrefixForIndex maps the zero-based position of a supervisor in prefix
// assignment order to a letter code: A..Z, then AA, AB, .. AZ, BA, and so on.
func PrefixForIndex(index int) string {
	if index < 0 {
		index = 0
	}
	n := index + 1
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}

// FormatRequestNumber renders a per-supervisor request number such as "A3".
func FormatRequestNumber(prefix string, seq int) string {
	return prefix + strconv.Itoa(seq)
}

// FormatOrderNumber renders a global order number. Numbers are padded to four
// digits and grow naturally past 9999.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("PO-%04d", seq)
}
