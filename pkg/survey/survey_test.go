package survey

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

func sampleDimensions() []Dimension {
	return []Dimension{
		{Name: "Policy", Code: "A", Criteria: []Criterion{{Code: "A1"}, {Code: "A2"}}},
		{Name: "Tech", Code: "B", Criteria: []Criterion{{Code: "B1"}}},
		{Name: "People", Code: "C", Criteria: []Criterion{{Code: "C1"}, {Code: "C2"}}},
	}
}

func TestGenerate_CountAndOrder(t *testing.T) {
	questions, err := Generate(sampleDimensions())
	require.NoError(t, err)

	// C(3,2) + C(5,2)
	require.Len(t, questions, 3+10)

	seen := make(map[string]bool)
	phaseSwitch := false
	for _, q := range questions {
		assert.False(t, seen[q.Key], "duplicate key %s", q.Key)
		seen[q.Key] = true
		if q.Category == CategoryCriteria {
			phaseSwitch = true
		} else {
			assert.False(t, phaseSwitch, "dimension question after criteria: %s", q.Key)
		}
	}

	assert.Equal(t, "dimension:A|B", questions[0].Key)
	assert.Equal(t, "dimension:B|C", questions[2].Key)
	assert.Equal(t, "criteria:A1|A2", questions[3].Key)
	assert.Equal(t, "criteria:A1|B1", questions[4].Key)
	assert.Equal(t, "criteria:C1|C2", questions[12].Key)
	assert.Equal(t, "B", questions[4].ItemB.DimensionID)
	assert.Equal(t, "Tech", questions[4].ItemB.DimensionName)
}

func TestGenerate_Deterministic(t *testing.T) {
	first, err := Generate(sampleDimensions())
	require.NoError(t, err)
	second, err := Generate(sampleDimensions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerate_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		dims []Dimension
	}{
		{"one dimension", []Dimension{{Code: "A", Criteria: []Criterion{{Code: "A1"}, {Code: "A2"}}}}},
		{"one criterion", []Dimension{{Code: "A", Criteria: []Criterion{{Code: "A1"}}}, {Code: "B"}}},
		{"duplicate dimension", []Dimension{{Code: "A", Criteria: []Criterion{{Code: "A1"}}}, {Code: "A", Criteria: []Criterion{{Code: "B1"}}}}},
		{"duplicate criterion", []Dimension{{Code: "A", Criteria: []Criterion{{Code: "X1"}}}, {Code: "B", Criteria: []Criterion{{Code: "X1"}}}}},
		{"empty code", []Dimension{{Code: "", Criteria: []Criterion{{Code: "A1"}}}, {Code: "B", Criteria: []Criterion{{Code: "B1"}}}}},
		{"pipe in code", []Dimension{{Code: "A|B", Criteria: []Criterion{{Code: "A1"}}}, {Code: "B", Criteria: []Criterion{{Code: "B1"}}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.dims)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

const sampleJSON = `{
  "說明": {"標題": "DEMATEL", "內容": ["line one", "line two"], "按鈕文字": "Start"},
  "基本資料": [{"編號": "age", "名稱": "Age", "類型": "text", "必填": true}],
  "架構": [
    {"構面": "Policy", "代碼": "A", "說明": "", "準則": [{"編號": "A1", "名稱": "Funding", "說明": "", "舉例": ["grants"]}]},
    {"構面": "Tech", "代碼": "B", "說明": "", "準則": [{"編號": "B1", "名稱": "Tooling", "說明": ""}]}
  ]
}`

const sampleYAML = `
說明:
  標題: DEMATEL
  內容: single line
  按鈕文字: Start
基本資料: []
架構:
  - 構面: Policy
    代碼: A
    準則:
      - 編號: A1
        名稱: Funding
  - 構面: Tech
    代碼: B
    準則:
      - 編號: B1
        名稱: Tooling
`

func TestParseConfig_JSONAndYAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, IntroLines{"line one", "line two"}, cfg.Intro.Content)
	assert.True(t, cfg.BasicInfo[0].Required)
	assert.Equal(t, []string{"grants"}, cfg.Dimensions[0].Criteria[0].Examples)

	cfg, err = ParseConfig([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, IntroLines{"single line"}, cfg.Intro.Content)
	assert.Len(t, cfg.Dimensions, 2)
}

func TestParseConfig_MissingSection(t *testing.T) {
	_, err := ParseConfig([]byte(`{"說明": {}, "架構": []}`), FormatJSON)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseConfig([]byte(`{not json`), FormatJSON)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadConfig_Digest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o600))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte(sampleJSON)), loaded.Digest)
	assert.Len(t, loaded.Digest, 64)
}

func TestNewAnswer_Directions(t *testing.T) {
	at := time.UnixMilli(1739000000000)

	tests := []struct {
		relation Relation
		want     string
	}{
		{RelationTo, "3|0"},
		{RelationFrom, "0|3"},
		{RelationBi, "3|2"},
		{RelationNone, "0|0"},
	}
	for _, tc := range tests {
		a, err := NewAnswer(tc.relation, 3, 2, at)
		require.NoError(t, err)
		assert.Equal(t, tc.want, a.Pair(), "relation %s", tc.relation)
		assert.Equal(t, int64(1739000000000), a.Timestamp)
	}

	_, err := NewAnswer("sideways", 1, 1, at)
	assert.Error(t, err)
}

func TestRawAnswers_OrderAndSkips(t *testing.T) {
	questions, err := Generate(sampleDimensions())
	require.NoError(t, err)

	at := time.Now()
	to, _ := NewAnswer(RelationTo, 4, 0, at)
	bi, _ := NewAnswer(RelationBi, 1, 2, at)
	skip, _ := NewAnswer(RelationSkipped, 0, 0, at)

	answers := map[string]Answer{
		"criteria:A1|A2": bi,
		"dimension:A|B":  to,
		"dimension:A|C":  skip,
		"criteria:Z9|Z8": to,
	}

	got := RawAnswers(questions, answers)
	assert.Equal(t, []KeyPair{
		{Key: "A|B", Pair: "4|0"},
		{Key: "A1|A2", Pair: "1|2"},
		{Key: "Z9|Z8", Pair: "4|0"},
	}, got)
}

func TestComputeProgress(t *testing.T) {
	questions, err := Generate(sampleDimensions())
	require.NoError(t, err)

	at := time.Now()
	none, _ := NewAnswer(RelationNone, 0, 0, at)
	skip, _ := NewAnswer(RelationSkipped, 0, 0, at)
	answers := map[string]Answer{
		"dimension:A|B":  none,
		"dimension:A|C":  none,
		"dimension:B|C":  skip,
		"criteria:A1|A2": none,
		"criteria:A1|B1": none,
	}

	p := ComputeProgress(questions, answers)
	assert.Equal(t, PhaseProgress{Answered: 2, Total: 3}, p.Dimension)
	assert.Equal(t, PhaseProgress{Answered: 2, Total: 10}, p.Criteria)
	assert.Equal(t, 31, p.Percentage)
	assert.Equal(t, 5, NextUnanswered(questions, answers))
}

func TestValidateBasicInfo(t *testing.T) {
	fields := []Field{
		{ID: "age", Name: "Age", Required: true},
		{ID: "roles", Name: "Roles", Required: true},
		{ID: "note", Name: "Note"},
	}

	info := tree.NewObject().
		Set("age", tree.String("30")).
		Set("roles", tree.Array{tree.String("analyst")})
	assert.NoError(t, ValidateBasicInfo(fields, info))

	info.Set("roles", tree.Array{})
	err := ValidateBasicInfo(fields, info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Roles")

	assert.Error(t, ValidateBasicInfo(fields, nil))
}

func TestNewSurveyID(t *testing.T) {
	a, b := NewSurveyID(), NewSurveyID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestParseSession(t *testing.T) {
	data := []byte(`{
		"surveyId": "s-1",
		"configDigest": "abc",
		"basicInfo": {"name": "Lee", "age": "30"},
		"answers": {"dimension:A|B": {"relation": "bi", "scoreA": 3, "scoreB": 1, "timestamp": 1739000000000}},
		"startTime": 1739000000000
	}`)

	s, err := ParseSession(data)
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
	assert.Equal(t, []string{"name", "age"}, s.BasicInfo.Keys())
	assert.Equal(t, "3|1", s.Answers["dimension:A|B"].Pair())
	assert.Equal(t, int64(1739000000000), s.StartTime.UnixMilli())
	assert.True(t, s.EndTime.IsZero())

	_, err = ParseSession([]byte(`{"basicInfo": [1]}`))
	assert.Error(t, err)
}
