package survey

import (
	"strings"

	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

// Category separates the two comparison phases.
type Category string

const (
	CategoryDimension Category = "dimension"
	CategoryCriteria  Category = "criteria"
)

// LargeQuestionSpace is the size above which generation logs a warning;
// respondents rarely finish questionnaires of that length.
const LargeQuestionSpace = 5000

// Item is one side of a pairwise question.
type Item struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Examples      []string `json:"examples,omitempty"`
	DimensionID   string   `json:"dimensionId,omitempty"`
	DimensionName string   `json:"dimensionName,omitempty"`
}

// PairwiseQuestion asks how ItemA and ItemB influence each other.
type PairwiseQuestion struct {
	Category Category `json:"type"`
	Key      string   `json:"key"`
	ItemA    Item     `json:"itemA"`
	ItemB    Item     `json:"itemB"`
}

// QuestionKey builds the canonical "<category>:<a>|<b>" answer key.
func QuestionKey(category Category, a, b string) string {
	return string(category) + ":" + a + "|" + b
}

// StripCategory removes the "<category>:" prefix from an answer key.
// Keys without a prefix are returned unchanged.
func StripCategory(key string) string {
	if _, rest, ok := strings.Cut(key, ":"); ok {
		return rest
	}
	return key
}

// Generate returns every dimension pair followed by every criterion pair, each in
// input order with i before j. The criteria list is flattened across dimensions,
// so criteria of different dimensions are compared with each other as well.
//
// The order is part of the session contract: progress and resume logic index into it.
func Generate(dimensions []Dimension) ([]PairwiseQuestion, error) {
	if err := validateDimensions(dimensions); err != nil {
		return nil, err
	}

	dimensionItems := make([]Item, 0, len(dimensions))
	var criteriaItems []Item
	for _, d := range dimensions {
		dimensionItems = append(dimensionItems, Item{
			ID:          d.Code,
			Name:        d.Name,
			Description: d.Description,
		})
		for _, c := range d.Criteria {
			criteriaItems = append(criteriaItems, Item{
				ID:            c.Code,
				Name:          c.Name,
				Description:   c.Description,
				Examples:      append([]string{}, c.Examples...),
				DimensionID:   d.Code,
				DimensionName: d.Name,
			})
		}
	}

	total := pairCount(len(dimensionItems)) + pairCount(len(criteriaItems))
	questions := make([]PairwiseQuestion, 0, total)
	questions = appendPairs(questions, CategoryDimension, dimensionItems)
	questions = appendPairs(questions, CategoryCriteria, criteriaItems)

	logger.Debug("[Survey] Generated question space",
		"dimension_items", len(dimensionItems),
		"criteria_items", len(criteriaItems),
		"questions", len(questions),
	)
	if len(questions) > LargeQuestionSpace {
		logger.Warn("[Survey] Question space is very large", "questions", len(questions))
	}

	return questions, nil
}

func appendPairs(questions []PairwiseQuestion, category Category, items []Item) []PairwiseQuestion {
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			questions = append(questions, PairwiseQuestion{
				Category: category,
				Key:      QuestionKey(category, items[i].ID, items[j].ID),
				ItemA:    items[i],
				ItemB:    items[j],
			})
		}
	}
	return questions
}

func pairCount(n int) int {
	return n * (n - 1) / 2
}
