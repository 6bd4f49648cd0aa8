package graph

import "math/rand"

// sampleIllicit draws a deterministic sample of wallet identifiers to
// serve as the known-illicit ground truth. Per DESIGN NOTES §9
// ("Randomness"), the RNG is seeded explicitly and iterates a stable,
// sorted node ordering so the same (nodes, seed, pct) always produces the
// same set — nodes is expected to already be sorted by the caller.
func sampleIllicit(sortedNodes []string, pct float64, seed int64) map[string]struct{} {
	out := make(map[string]struct{})
	if len(sortedNodes) == 0 {
		return out
	}

	k := int(float64(len(sortedNodes)) * pct)
	if k < 1 {
		k = 1
	}
	if k > len(sortedNodes) {
		k = len(sortedNodes)
	}

	pool := make([]string, len(sortedNodes))
	copy(pool, sortedNodes)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i := 0; i < k; i++ {
		out[pool[i]] = struct{}{}
	}
	return out
}
