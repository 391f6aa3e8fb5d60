// Package shorten replaces repeated keys and string values of a document with short
// tokens when doing so pays for the dictionary entry it costs.
//
// Keys are replaced by single letters (a-z, then A-Z). Values are replaced by "#0",
// "#1" and so on. A literal string in the input that equals a chosen token cannot be
// told apart from it on expansion; such documents do not round-trip.
package shorten

import (
	"strconv"
	"unicode/utf16"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

const (
	DefaultMinLen  = 8
	DefaultMinGain = 2

	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	keyTokenLen   = 1
	valueTokenLen = 2
)

// Result holds the rewritten document and the token -> original tables needed to undo it.
type Result struct {
	Value  tree.Value
	KeyMap *tree.Object
	ValMap *tree.Object
}

// Options tunes candidate selection. Zero fields take the defaults.
type Options struct {
	MinLen  int
	MinGain int
}

// Shorten runs with DefaultMinLen and DefaultMinGain.
func Shorten(v tree.Value) Result {
	return ShortenWith(v, Options{})
}

// ShortenWith substitutes every key and string value that is at least MinLen long,
// occurs at least twice and saves at least MinGain characters once its dictionary
// entry is paid for. Candidates are considered in order of first encounter during a
// depth-first walk, which fixes token assignment for a given document.
func ShortenWith(v tree.Value, opts Options) Result {
	if opts.MinLen <= 0 {
		opts.MinLen = DefaultMinLen
	}
	if opts.MinGain <= 0 {
		opts.MinGain = DefaultMinGain
	}

	keys, values := newTally(), newTally()
	scan(v, keys, values)

	keyTokens := &letterTokens{}
	valueTokens := &counterTokens{}
	keyMap, keyRev := pick(keys, keyTokens, keyTokenLen, opts)
	valMap, valRev := pick(values, valueTokens, valueTokenLen, opts)

	return Result{
		Value:  rewrite(v, keyRev, valRev),
		KeyMap: keyMap,
		ValMap: valMap,
	}
}

// Expand reverses Shorten using the token -> original tables.
func Expand(v tree.Value, keyMap, valMap *tree.Object) tree.Value {
	return rewrite(v, stringTable(keyMap), stringTable(valMap))
}

type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(s string) {
	if _, ok := t.counts[s]; !ok {
		t.order = append(t.order, s)
	}
	t.counts[s]++
}

func scan(v tree.Value, keys, values *tally) {
	switch tv := v.(type) {
	case tree.Array:
		for _, elem := range tv {
			scan(elem, keys, values)
		}
	case *tree.Object:
		for _, k := range tv.Keys() {
			keys.add(k)
			elem, _ := tv.Get(k)
			scan(elem, keys, values)
		}
	case tree.String:
		values.add(string(tv))
	}
}

type tokenSource interface {
	next() (string, bool)
}

type letterTokens struct{ n int }

func (l *letterTokens) next() (string, bool) {
	if l.n >= len(keyAlphabet) {
		return "", false
	}
	tok := keyAlphabet[l.n : l.n+1]
	l.n++
	return tok, true
}

type counterTokens struct{ n int }

func (c *counterTokens) next() (string, bool) {
	tok := "#" + strconv.Itoa(c.n)
	c.n++
	return tok, true
}

func pick(t *tally, tokens tokenSource, tokenLen int, opts Options) (*tree.Object, map[string]string) {
	table := tree.NewObject()
	reverse := make(map[string]string)
	for _, s := range t.order {
		count := t.counts[s]
		n := textLen(s)
		if n < opts.MinLen || count < 2 {
			continue
		}
		gain := (n-tokenLen)*count - (n + tokenLen)
		if gain < opts.MinGain {
			continue
		}
		tok, ok := tokens.next()
		if !ok {
			break
		}
		table.Set(tok, tree.String(s))
		reverse[s] = tok
	}
	return table, reverse
}

func rewrite(v tree.Value, keys, values map[string]string) tree.Value {
	switch tv := v.(type) {
	case tree.Array:
		out := make(tree.Array, len(tv))
		for i, elem := range tv {
			out[i] = rewrite(elem, keys, values)
		}
		return out
	case *tree.Object:
		out := tree.NewObject()
		for _, k := range tv.Keys() {
			elem, _ := tv.Get(k)
			if sub, ok := keys[k]; ok {
				k = sub
			}
			out.Set(k, rewrite(elem, keys, values))
		}
		return out
	case tree.String:
		if sub, ok := values[string(tv)]; ok {
			return tree.String(sub)
		}
		return tv
	}
	return v
}

func stringTable(obj *tree.Object) map[string]string {
	m := make(map[string]string, obj.Len())
	for _, k := range obj.Keys() {
		if s, ok := obj.GetString(k); ok {
			m[k] = s
		}
	}
	return m
}

// textLen counts UTF-16 code units, the unit the dictionary gain is defined in.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
