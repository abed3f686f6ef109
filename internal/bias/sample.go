package bias

// samplePoints picks count evenly spaced indices in [lo, hi] inclusive,
// deduplicating collisions after rounding. Returned indices are ascending.
func samplePoints(lo, hi, count int) []int {
	if hi < lo || count <= 0 {
		return nil
	}
	span := hi - lo
	if count == 1 || span == 0 {
		return []int{lo}
	}
	if count > span+1 {
		count = span + 1
	}
	step := float64(span) / float64(count-1)
	out := make([]int, 0, count)
	last := -1
	for i := 0; i < count; i++ {
		idx := lo + int(float64(i)*step+0.5)
		if idx > hi {
			idx = hi
		}
		if idx != last {
			out = append(out, idx)
			last = idx
		}
	}
	return out
}
