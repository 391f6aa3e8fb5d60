package dematel

import (
	"regexp"
	"sort"
	"strings"
)

var labelPattern = regexp.MustCompile(`^([A-Za-z]+)(\d+)?$`)

// CompareLabels orders labels naturally: "B2" before "B10". Labels of the form
// <letters><digits> compare by case-folded prefix, then numerically by suffix, with a
// missing suffix first. Any other label falls back to case-insensitive comparison.
// Labels that still tie compare by their raw bytes so the order is total.
func CompareLabels(a, b string) int {
	if c := compareNatural(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareNatural(a, b string) int {
	ma := labelPattern.FindStringSubmatch(a)
	mb := labelPattern.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}

	if c := strings.Compare(strings.ToLower(ma[1]), strings.ToLower(mb[1])); c != 0 {
		return c
	}
	switch {
	case ma[2] == "" && mb[2] == "":
		return 0
	case ma[2] == "":
		return -1
	case mb[2] == "":
		return 1
	}
	return compareDigits(ma[2], mb[2])
}

// compareDigits compares decimal strings by value without overflowing.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// SortLabels sorts labels in place with CompareLabels.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return CompareLabels(labels[i], labels[j]) < 0
	})
}
