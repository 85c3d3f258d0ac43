// Package similarity implements Ratcliff/Obershelp sequence matching over
// opaque token slices. It is the comparison primitive for SERP overlap
// analysis but knows nothing about keywords or URLs; callers hand it any
// comparable token type.
package similarity

// Ratio returns a similarity score for two ordered sequences in [0,1].
//
// The measure is the classic "gestalt" ratio: repeatedly find the longest
// common contiguous block, recurse on the unmatched left and right
// remainders, and compute 2*M/T where M is the total matched length and T
// is the combined length of both inputs.
//
// Boundary choice: two empty sequences score 1.0 (no signal is treated as
// identical), one empty and one non-empty score 0.0. Matching is positional,
// so the same tokens in a different order score below 1.0.
func Ratio[T comparable](a, b []T) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	matched := matchedLength(a, b)
	return 2.0 * float64(matched) / float64(total)
}

// span is an unmatched window into both sequences, half-open on the right.
type span struct {
	alo, ahi int
	blo, bhi int
}

// matchedLength sums the lengths of all matching blocks found by the
// longest-block recursion. Iterative with an explicit stack so deeply
// fragmented inputs cannot exhaust goroutine stacks.
func matchedLength[T comparable](a, b []T) int {
	stack := []span{{0, len(a), 0, len(b)}}
	total := 0
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, size := longestMatch(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if size == 0 {
			continue
		}
		total += size
		stack = append(stack,
			span{s.alo, i, s.blo, j},
			span{i + size, s.ahi, j + size, s.bhi},
		)
	}
	return total
}

// longestMatch finds the longest contiguous block common to a[alo:ahi] and
// b[blo:bhi]. Ties resolve to the block starting earliest in a, then
// earliest in b, which keeps the result deterministic for equal inputs.
func longestMatch[T comparable](a, b []T, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	// Positions of each token within the b window.
	b2j := make(map[T][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	besti, bestj = alo, blo

	// j2len[j] is the length of the common run ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestsize
}
