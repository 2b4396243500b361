package clones

// CloneType identifies the similarity class of a clone pair. Lower types
// are more specific: a span pair matched by several detectors is reported
// once, under the lowest matching type.
type CloneType int

const (
	// Type1 is an exact copy up to whitespace.
	Type1 CloneType = 1
	// Type2 is structurally identical code with renamed identifiers.
	Type2 CloneType = 2
	// Type3 is copied code with statement-level modifications.
	Type3 CloneType = 3
	// Type4 is behaviorally similar code with different structure.
	// Advisory: the similarity score is a heuristic, not a proof.
	Type4 CloneType = 4
)

// CloneRecord is one detected clone pair. Spans are canonically ordered:
// (FileA, StartLineA) sorts before (FileB, StartLineB).
type CloneRecord struct {
	Type       CloneType `json:"type"`
	FileA      string    `json:"file_a"`
	StartLineA uint32    `json:"start_line_a"`
	EndLineA   uint32    `json:"end_line_a"`
	FileB      string    `json:"file_b"`
	StartLineB uint32    `json:"start_line_b"`
	EndLineB   uint32    `json:"end_line_b"`
	Similarity float64   `json:"similarity"`
}

// Config holds clone detection thresholds.
type Config struct {
	// MinLinesSameFile and MinLinesCrossFile gate the minimum span
	// length per scope.
	MinLinesSameFile  int
	MinLinesCrossFile int
	// WindowSize is the Type-1 sliding window length in normalized lines.
	WindowSize int
	// Type2Similarity is the fingerprint LCS ratio floor for Type 2.
	Type2Similarity float64
	// Type3Similarity is the lower bound of the Type-3 band; its upper
	// bound is Type2Similarity.
	Type3Similarity float64
	// Type4Similarity is the behavior-vector cosine floor for Type 4.
	Type4Similarity float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinLinesSameFile:  15,
		MinLinesCrossFile: 10,
		WindowSize:        6,
		Type2Similarity:   0.85,
		Type3Similarity:   0.60,
		Type4Similarity:   0.75,
	}
}
