package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	v, err := Parse([]byte(`{"zeta":1,"alpha":{"b":true,"a":null},"mid":["x",2.5,"y"]}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	alpha, ok := obj.GetObject("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, alpha.Keys())

	mid, _ := obj.Get("mid")
	assert.Equal(t, Array{String("x"), Number(2.5), String("y")}, mid)
}

func TestParse_EscapesAndUnicode(t *testing.T) {
	v, err := Parse([]byte(`{"k\"ey":"line\nbreak 問卷","問卷":"ok"}`))
	require.NoError(t, err)

	obj := v.(*Object)
	s, ok := obj.GetString(`k"ey`)
	require.True(t, ok)
	assert.Equal(t, "line\nbreak 問卷", s)

	s, ok = obj.GetString("問卷")
	require.True(t, ok)
	assert.Equal(t, "ok", s)
}

func TestParse_EmptyContainers(t *testing.T) {
	v, err := Parse([]byte(` {"a":[],"b":{}} `))
	require.NoError(t, err)

	obj := v.(*Object)
	a, _ := obj.Get("a")
	assert.Equal(t, Array{}, a)
	b, _ := obj.GetObject("b")
	assert.Equal(t, 0, b.Len())
}

func TestParse_Errors(t *testing.T) {
	for _, input := range []string{``, `{"a":`, `{"a":1} trailing`, `nope`} {
		_, err := Parse([]byte(input))
		assert.ErrorIs(t, err, ErrSyntax, "input %q", input)
	}

	_, err := ParseObject([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestObject_SetKeepsFirstPosition(t *testing.T) {
	obj := NewObject().Set("a", Number(1)).Set("b", Number(2)).Set("a", Number(3))
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, _ := obj.Get("a")
	assert.Equal(t, Number(3), v)
}

func TestMarshal_RoundTrip(t *testing.T) {
	input := `{"surveyId":"s-1","basicInfo":{"age":"30","tags":["a","b"]},"answers":{"D1|D2":"3|0"},"startTime":1739000000000,"ratio":0.25,"flag":false,"none":null}`
	v, err := Parse([]byte(input))
	require.NoError(t, err)

	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))

	again, err := Parse(out)
	require.NoError(t, err)
	assert.True(t, Equal(v, again))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	out, err := Marshal(String("a<b>&c"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(out))
}

func TestMarshal_StringEscapes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"line\u2028sep\u2029", "\"line\u2028sep\u2029\""},
		{"q\"b\\", `"q\"b\\"`},
		{"\b\f\n\r\t", `"\b\f\n\r\t"`},
		{"\x01\x1f", `"\u0001\u001f"`},
		{"\x7f é", "\"\x7f é\""},
		{"bad\xffbyte", "\"bad\uFFFDbyte\""},
	}
	for _, tc := range tests {
		out, err := Marshal(String(tc.in))
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(out), "%q", tc.in)
	}
}

func TestMarshal_NonFinite(t *testing.T) {
	obj := NewObject().Set("bad", Number(math.NaN()))
	_, err := Marshal(obj)
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = Marshal(Array{Number(math.Inf(1))})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestMarshalIndent(t *testing.T) {
	obj := NewObject().
		Set("surveyId", String("s-1")).
		Set("answers", NewObject().Set("A|B", String("3|5"))).
		Set("empty", Array{}).
		Set("list", Array{Number(1), Number(2)})

	out, err := MarshalIndent(obj, "  ")
	require.NoError(t, err)

	want := "{\n" +
		"  \"surveyId\": \"s-1\",\n" +
		"  \"answers\": {\n" +
		"    \"A|B\": \"3|5\"\n" +
		"  },\n" +
		"  \"empty\": [],\n" +
		"  \"list\": [\n" +
		"    1,\n" +
		"    2\n" +
		"  ]\n" +
		"}"
	assert.Equal(t, want, string(out))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{3, "3"},
		{-4, "-4"},
		{1739000000000, "1739000000000"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
	}
	for _, tc := range tests {
		got, err := FormatNumber(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "FormatNumber(%v)", tc.in)
	}
}

func TestEqual(t *testing.T) {
	a := NewObject().Set("x", Number(1)).Set("y", Number(2))
	b := NewObject().Set("y", Number(2)).Set("x", Number(1))
	assert.False(t, Equal(a, b), "key order is significant")
	assert.True(t, Equal(a, NewObject().Set("x", Number(1)).Set("y", Number(2))))
	assert.False(t, Equal(String("1"), Number(1)))
}
