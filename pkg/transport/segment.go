package transport

// SegmentOverhead is the space reserved in each segment for everything but the payload.
const SegmentOverhead = 100

// DefaultBudget is the serialized size a segment should stay within.
const DefaultBudget = 800

// Segment is one transportable piece of a packed payload.
type Segment struct {
	GroupID string `json:"g"`
	Index   int    `json:"i"`
	Total   int    `json:"total"`
	Part    string `json:"part"`
}

// SegmentCount returns how many segments a payload of length n needs under budget.
// Budgets at or below SegmentOverhead leave room for a single character per segment.
func SegmentCount(n, budget int) int {
	capacity := segmentCapacity(budget)
	if n <= 0 {
		return 1
	}
	return (n + capacity - 1) / capacity
}

func segmentCapacity(budget int) int {
	if c := budget - SegmentOverhead; c > 0 {
		return c
	}
	return 1
}

// Split cuts payload into SegmentCount pieces of near-equal length. Each piece but
// the last takes its share of what is left, rounded up, so no piece exceeds the
// per-segment capacity and the last piece absorbs the remainder.
func Split(payload string, budget int) []string {
	capacity := segmentCapacity(budget)
	total := SegmentCount(len(payload), budget)

	parts := make([]string, 0, total)
	rest := payload
	for left := total; left > 1; left-- {
		n := (len(rest) + left - 1) / left
		if n > capacity {
			n = capacity
		}
		parts = append(parts, rest[:n])
		rest = rest[n:]
	}
	return append(parts, rest)
}
