package survey

import "math"

// PhaseProgress counts answered questions in one category.
type PhaseProgress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// Progress summarises how far a session has come. Skipped questions are not counted
// as answered.
type Progress struct {
	Dimension  PhaseProgress `json:"dimension"`
	Criteria   PhaseProgress `json:"criteria"`
	Answered   int           `json:"answered"`
	Total      int           `json:"total"`
	Percentage int           `json:"percentage"`
}

// ComputeProgress counts the answers that match a question in questions.
func ComputeProgress(questions []PairwiseQuestion, answers map[string]Answer) Progress {
	var p Progress
	for _, q := range questions {
		phase := &p.Criteria
		if q.Category == CategoryDimension {
			phase = &p.Dimension
		}
		phase.Total++
		if a, ok := answers[q.Key]; ok && !a.Skipped() {
			phase.Answered++
		}
	}
	p.Answered = p.Dimension.Answered + p.Criteria.Answered
	p.Total = p.Dimension.Total + p.Criteria.Total
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Answered) * 100 / float64(p.Total)))
	}
	return p
}

// NextUnanswered returns the index of the first question without an answer, skipped
// ones included, or len(questions) when every question has been visited.
func NextUnanswered(questions []PairwiseQuestion, answers map[string]Answer) int {
	for i, q := range questions {
		if _, ok := answers[q.Key]; !ok {
			return i
		}
	}
	return len(questions)
}
