package shorten

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

func answerDoc() *tree.Object {
	answers := tree.NewObject()
	for i := 1; i <= 4; i++ {
		answers.Set(fmt.Sprintf("A%d|B%d", i, i), tree.String("3|0"))
	}
	return tree.NewObject().
		Set("surveyId", tree.String("s-1")).
		Set("basicInfo", tree.NewObject().
			Set("organisation", tree.String("Department of Energy")).
			Set("previousEmployer", tree.String("Department of Energy"))).
		Set("answers", answers).
		Set("rows", tree.Array{
			tree.NewObject().Set("organisation", tree.String("Department of Energy")).Set("count", tree.Number(2)),
			tree.NewObject().Set("organisation", tree.String("short")).Set("count", tree.Null{}),
		})
}

func TestShorten_SelectsRepeatedLongStrings(t *testing.T) {
	res := Shorten(answerDoc())

	// "organisation": 12 chars, 3 occurrences, gain (12-1)*3-(12+1) = 20
	tok, ok := res.KeyMap.GetString("a")
	require.True(t, ok)
	assert.Equal(t, "organisation", tok)
	assert.Equal(t, 1, res.KeyMap.Len())

	// "Department of Energy": 20 chars, 3 occurrences
	val, ok := res.ValMap.GetString("#0")
	require.True(t, ok)
	assert.Equal(t, "Department of Energy", val)
	assert.Equal(t, 1, res.ValMap.Len())

	out := res.Value.(*tree.Object)
	info, _ := out.GetObject("basicInfo")
	assert.Equal(t, []string{"a", "previousEmployer"}, info.Keys())
	s, _ := info.GetString("a")
	assert.Equal(t, "#0", s)

	rows, _ := out.Get("rows")
	second := rows.(tree.Array)[1].(*tree.Object)
	s, _ = second.GetString("a")
	assert.Equal(t, "short", s)
	count, _ := second.Get("count")
	assert.Equal(t, tree.Null{}, count)
}

func TestShorten_Thresholds(t *testing.T) {
	doc := tree.Array{
		tree.String("seven77"), tree.String("seven77"), tree.String("seven77"), // below minLen
		tree.String("only-once-but-long"),
		tree.String("exactly8"), tree.String("exactly8"), // gain (8-2)*2-(8+2) = 2
	}
	res := Shorten(doc)

	assert.Equal(t, 1, res.ValMap.Len())
	v, _ := res.ValMap.GetString("#0")
	assert.Equal(t, "exactly8", v)

	res = ShortenWith(doc, Options{MinGain: 3})
	assert.Equal(t, 0, res.ValMap.Len())
}

func TestShorten_NeverSubstitutesIneligible(t *testing.T) {
	doc := answerDoc()
	res := Shorten(doc)

	seen := make(map[string]string)
	check := func(table *tree.Object) {
		for _, tok := range table.Keys() {
			orig, _ := table.GetString(tok)
			assert.GreaterOrEqual(t, textLen(orig), DefaultMinLen)
			if prev, dup := seen[orig]; dup {
				t.Errorf("%q mapped to %q and %q", orig, prev, tok)
			}
			seen[orig] = tok
		}
	}
	check(res.KeyMap)
	check(res.ValMap)
}

func TestShorten_KeyAlphabetExhaustion(t *testing.T) {
	doc := tree.Array{}
	for i := 0; i < 60; i++ {
		key := fmt.Sprintf("repeated-key-%02d", i)
		doc = append(doc,
			tree.NewObject().Set(key, tree.Number(1)),
			tree.NewObject().Set(key, tree.Number(2)),
		)
	}

	res := Shorten(doc)
	assert.Equal(t, 52, res.KeyMap.Len())
	last, _ := res.KeyMap.GetString("Z")
	assert.Equal(t, "repeated-key-51", last)

	arr := res.Value.(tree.Array)
	assert.Equal(t, []string{"repeated-key-59"}, arr[len(arr)-1].(*tree.Object).Keys())
}

func TestShorten_Deterministic(t *testing.T) {
	a := Shorten(answerDoc())
	b := Shorten(answerDoc())
	assert.True(t, tree.Equal(a.Value, b.Value))
	assert.True(t, tree.Equal(a.KeyMap, b.KeyMap))
	assert.True(t, tree.Equal(a.ValMap, b.ValMap))
}

func TestExpand_RoundTrip(t *testing.T) {
	doc := answerDoc()
	res := Shorten(doc)
	back := Expand(res.Value, res.KeyMap, res.ValMap)
	assert.True(t, tree.Equal(doc, back))
}

func TestTextLen_UTF16(t *testing.T) {
	assert.Equal(t, 3, textLen("問卷A"))
	assert.Equal(t, 2, textLen("😀"))
	assert.Equal(t, 8, textLen(strings.Repeat("x", 8)))
}
