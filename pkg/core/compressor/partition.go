package compressor

// Range is a half-open byte range [Start, End) of the input.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits length bytes into k contiguous, non-overlapping ranges
// that together cover [0, length). Range i starts at i*length/k; the last
// range always ends at length. When k exceeds length some ranges are empty.
func Partition(length, k int) []Range {
	if k < 1 {
		k = 1
	}
	if length < 0 {
		length = 0
	}

	ranges := make([]Range, k)
	for i := 0; i < k; i++ {
		ranges[i] = Range{
			Start: int(int64(i) * int64(length) / int64(k)),
			End:   int(int64(i+1) * int64(length) / int64(k)),
		}
	}
	ranges[k-1].End = length
	return ranges
}
