package utils

import (
	"strconv"
	"strings"
)

// StringToInt parses ids and small numeric form fields. Malformed or empty
// input comes back as 0, which every caller treats as absent.
func StringToInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
