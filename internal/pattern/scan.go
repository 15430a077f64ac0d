package pattern

// Scan returns the offset of the leftmost match of p in region.
// The comparison is a plain sliding window; it runs at startup only.
func Scan(region []byte, p Pattern) (int, bool) {
	if len(p) == 0 || len(p) > len(region) {
		return 0, false
	}
	last := len(region) - len(p)
	for i := 0; i <= last; i++ {
		if p.Match(region[i:]) {
			return i, true
		}
	}
	return 0, false
}

// ScanAll returns the offsets of every match of p in region, in order.
func ScanAll(region []byte, p Pattern) []int {
	var offsets []int
	if len(p) == 0 || len(p) > len(region) {
		return offsets
	}
	last := len(region) - len(p)
	for i := 0; i <= last; i++ {
		if p.Match(region[i:]) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}
