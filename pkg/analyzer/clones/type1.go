package clones

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// lineHashBase is the multiplier for the polynomial rolling hash over
// per-line hashes. Arithmetic is modulo 2^64 by natural overflow.
const lineHashBase = 1099511628211

// windowRef locates one sliding window: a file index into the sorted
// per-file slice and a start offset into its normalized lines.
type windowRef struct {
	file  int
	start int
}

// detectType1 finds exact copies: a rolling hash over normalized lines
// surfaces candidate windows, blake3 digests and direct line comparison
// confirm them, and confirmed windows extend forward as far as the text
// stays identical. Overlapping windows of one long copy collapse into a
// single record.
func detectType1(files []fileClones, cfg Config) []CloneRecord {
	w := cfg.WindowSize

	pow := uint64(1)
	for i := 0; i < w-1; i++ {
		pow *= lineHashBase
	}

	windows := make([][]uint64, len(files))
	for fi, f := range files {
		if len(f.lines) < w {
			continue
		}
		lineHashes := make([]uint64, len(f.lines))
		for i, l := range f.lines {
			lineHashes[i] = xxhash.Sum64String(l.text)
		}
		var h uint64
		for i := 0; i < w; i++ {
			h = h*lineHashBase + lineHashes[i]
		}
		win := make([]uint64, len(f.lines)-w+1)
		win[0] = h
		for i := 1; i < len(win); i++ {
			h = (h-lineHashes[i-1]*pow)*lineHashBase + lineHashes[i+w-1]
			win[i] = h
		}
		windows[fi] = win
	}

	table := make(map[uint64][]windowRef)
	for fi := range files {
		for s, h := range windows[fi] {
			table[h] = append(table[h], windowRef{file: fi, start: s})
		}
	}

	digests := make(map[windowRef][32]byte)
	digest := func(r windowRef) [32]byte {
		if d, ok := digests[r]; ok {
			return d
		}
		var sb strings.Builder
		for i := 0; i < w; i++ {
			sb.WriteString(files[r.file].lines[r.start+i].text)
			sb.WriteByte('\n')
		}
		d := blake3.Sum256([]byte(sb.String()))
		digests[r] = d
		return d
	}

	// windows subsumed by an already-extended match
	covered := make(map[[4]int]bool)

	var records []CloneRecord
	for fa := range files {
		for ia := range windows[fa] {
			for _, rb := range table[windows[fa][ia]] {
				fb, ib := rb.file, rb.start
				if fb < fa || (fb == fa && ib <= ia) {
					continue // each unordered pair once, canonically oriented
				}
				if fa == fb && ib < ia+w {
					continue // overlapping spans in one file are not copies
				}
				if covered[[4]int{fa, fb, ia, ib}] {
					continue
				}
				if digest(windowRef{fa, ia}) != digest(rb) {
					continue
				}

				la, lb := files[fa].lines, files[fb].lines
				match := true
				for k := 0; k < w; k++ {
					if la[ia+k].text != lb[ib+k].text {
						match = false
						break
					}
				}
				if !match {
					continue
				}

				length := w
				for ia+length < len(la) && ib+length < len(lb) &&
					(fa != fb || length < ib-ia) &&
					la[ia+length].text == lb[ib+length].text {
					length++
				}
				for k := 1; k+w <= length; k++ {
					covered[[4]int{fa, fb, ia + k, ib + k}] = true
				}

				if length < cfg.minLines(fa == fb) {
					continue
				}
				records = append(records, CloneRecord{
					Type:       Type1,
					FileA:      files[fa].path,
					StartLineA: la[ia].orig,
					EndLineA:   la[ia+length-1].orig,
					FileB:      files[fb].path,
					StartLineB: lb[ib].orig,
					EndLineB:   lb[ib+length-1].orig,
					Similarity: 1.0,
				})
			}
		}
	}
	return records
}
