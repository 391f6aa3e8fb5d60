package survey

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Relation is the respondent's judgement of influence between ItemA and ItemB.
type Relation string

const (
	RelationTo      Relation = "to"   // A influences B
	RelationFrom    Relation = "from" // B influences A
	RelationBi      Relation = "bi"
	RelationNone    Relation = "none"
	RelationSkipped Relation = "skipped"
)

// Answer stores the influence of A on B and of B on A. A nil score means the
// direction was not rated.
type Answer struct {
	Relation  Relation `json:"relation"`
	ScoreA    *int     `json:"scoreA,omitempty"`
	ScoreB    *int     `json:"scoreB,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// NewAnswer maps a relation and its scores onto the two influence directions.
// score2 is only read for RelationBi.
func NewAnswer(relation Relation, score1, score2 int, at time.Time) (Answer, error) {
	a := Answer{Relation: relation, Timestamp: at.UnixMilli()}
	switch relation {
	case RelationTo:
		a.ScoreA = &score1
	case RelationFrom:
		a.ScoreB = &score1
	case RelationBi:
		a.ScoreA = &score1
		a.ScoreB = &score2
	case RelationNone, RelationSkipped:
	default:
		return Answer{}, fmt.Errorf("unknown relation %q", relation)
	}
	return a, nil
}

// Skipped reports whether the question was passed over without a judgement.
func (a Answer) Skipped() bool {
	return a.Relation == RelationSkipped
}

// Pair renders the answer as "<a>|<b>", the string form matrix building consumes.
// Unrated directions render as 0.
func (a Answer) Pair() string {
	return scoreString(a.ScoreA) + "|" + scoreString(a.ScoreB)
}

func scoreString(s *int) string {
	if s == nil {
		return "0"
	}
	return strconv.Itoa(*s)
}

// KeyPair is one entry of the ordered raw answer map.
type KeyPair struct {
	Key  string
	Pair string
}

// RawAnswers converts session answers into "l|r" -> "a|b" entries. Entries follow
// question order; answers whose key is not in questions are appended sorted by key.
// Skipped answers carry no judgement and are left out.
func RawAnswers(questions []PairwiseQuestion, answers map[string]Answer) []KeyPair {
	out := make([]KeyPair, 0, len(answers))
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		seen[q.Key] = struct{}{}
		a, ok := answers[q.Key]
		if !ok || a.Skipped() {
			continue
		}
		out = append(out, KeyPair{Key: StripCategory(q.Key), Pair: a.Pair()})
	}

	var extra []string
	for key, a := range answers {
		if _, ok := seen[key]; ok || a.Skipped() {
			continue
		}
		extra = append(extra, key)
	}
	sort.Strings(extra)
	for _, key := range extra {
		out = append(out, KeyPair{Key: StripCategory(key), Pair: answers[key].Pair()})
	}
	return out
}
