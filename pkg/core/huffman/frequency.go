package huffman

// FrequencyTable counts occurrences of each byte value.
//
// Tables built over disjoint ranges of the same input can be summed with
// Add in any order to obtain the table for the whole input.
type FrequencyTable [256]uint64

// Count tallies every byte of data into t.
func (t *FrequencyTable) Count(data []byte) {
	for _, b := range data {
		t[b]++
	}
}

// Add sums other into t.
func (t *FrequencyTable) Add(other *FrequencyTable) {
	for i, n := range other {
		t[i] += n
	}
}

// Total returns the number of bytes counted.
func (t *FrequencyTable) Total() uint64 {
	var total uint64
	for _, n := range t {
		total += n
	}
	return total
}

// Distinct returns how many byte values occur at least once.
func (t *FrequencyTable) Distinct() int {
	distinct := 0
	for _, n := range t {
		if n > 0 {
			distinct++
		}
	}
	return distinct
}
