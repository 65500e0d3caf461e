package model

import "unicode/utf8"

// TruncateString caps a string at the given byte length, backing off to the
// previous rune boundary so the column value stays valid utf8mb4.
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	cut := []byte(s[:maxLength])
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRune(cut)
		if r == utf8.RuneError && size == 1 {
			cut = cut[:len(cut)-1]
			continue
		}
		break
	}
	return string(cut)
}
