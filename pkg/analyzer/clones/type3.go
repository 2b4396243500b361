package clones

// detectType3 evaluates modified-clone candidates: fine-bucket near
// misses handed down from the renamed-clone pass, plus pairs that share
// the coarse shape bucket. The measure is the matching-blocks ratio over
// normalized tokens, accepted inside the configured band below the
// Type-2 floor.
func detectType3(prints []functionPrint, nearMisses [][2]int, cfg Config) []CloneRecord {
	seen := make(map[[2]int]bool)
	var candidates [][2]int
	add := func(pair [2]int) {
		if !seen[pair] {
			seen[pair] = true
			candidates = append(candidates, pair)
		}
	}

	for _, pair := range nearMisses {
		add(pair)
	}

	coarse := make(map[uint64][]int)
	for i, p := range prints {
		coarse[p.coarseKey] = append(coarse[p.coarseKey], i)
	}
	for i := range prints {
		for _, j := range coarse[prints[i].coarseKey] {
			if j > i {
				add([2]int{i, j})
			}
		}
	}

	var records []CloneRecord
	for _, pair := range candidates {
		a, b := prints[pair[0]], prints[pair[1]]
		if !meetsMinLines(a, b, cfg) || len(a.tokens) == 0 || len(b.tokens) == 0 {
			continue
		}

		shorter, longer := len(a.tokens), len(b.tokens)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		// best case the whole shorter stream matches
		if 2*float64(shorter)/float64(shorter+longer) < cfg.Type3Similarity {
			continue
		}

		ratio := matchingBlocksRatio(a.tokens, b.tokens)
		if ratio >= cfg.Type3Similarity && ratio < cfg.Type2Similarity {
			records = append(records, pairRecord(Type3, a, b, ratio))
		}
	}
	return records
}

// matchingBlocksRatio is twice the total length of the recursively
// longest matching token blocks over the combined length, the classic
// sequence-matcher ratio.
func matchingBlocksRatio(a, b []string) float64 {
	b2j := make(map[string][]int, len(b))
	for j, tok := range b {
		b2j[tok] = append(b2j[tok], j)
	}
	matched := matchBlocks(a, 0, len(a), 0, len(b), b2j)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchBlocks sums the longest matching block in the region and recurses
// into the unmatched text on either side of it.
func matchBlocks(a []string, alo, ahi, blo, bhi int, b2j map[string][]int) int {
	bestI, bestJ, bestLen := longestMatch(a, alo, ahi, blo, bhi, b2j)
	if bestLen == 0 {
		return 0
	}
	total := bestLen
	total += matchBlocks(a, alo, bestI, blo, bestJ, b2j)
	total += matchBlocks(a, bestI+bestLen, ahi, bestJ+bestLen, bhi, b2j)
	return total
}

// longestMatch finds the longest block of a[alo:ahi] appearing in
// b[blo:bhi], preferring the earliest position on ties.
func longestMatch(a []string, alo, ahi, blo, bhi int, b2j map[string][]int) (int, int, int) {
	bestI, bestJ, bestLen := alo, blo, 0
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestLen {
				bestI, bestJ, bestLen = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return bestI, bestJ, bestLen
}
