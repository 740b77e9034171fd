package minhash

import "math"

// Params derives a band count and band width for an LSH index from a target
// Jaccard threshold and a permutation budget.
//
// Among all (bands, width) pairs with bands*width <= permutations it picks
// the pair whose banded collision threshold (1/bands)^(1/width) is closest
// to the target, preferring pairs that use the full permutation budget.
func Params(jaccardThreshold float64, permutations int) (numBands, bandWidth int) {
	bestErr := math.Inf(1)
	numBands, bandWidth = 1, permutations

	for width := 1; width <= permutations; width++ {
		bands := permutations / width
		if bands < 1 {
			break
		}

		err := math.Abs(BandedThreshold(bands, width) - jaccardThreshold)

		// Exact factorizations win ties so the whole budget is used.
		exact := bands*width == permutations
		if err < bestErr || (err == bestErr && exact) {
			bestErr = err
			numBands, bandWidth = bands, width
		}
	}

	return numBands, bandWidth
}

// BandedThreshold returns the approximate Jaccard similarity at which a
// banded index with the given shape reaches 50% collision probability.
func BandedThreshold(numBands, bandWidth int) float64 {
	return math.Pow(1/float64(numBands), 1/float64(bandWidth))
}
