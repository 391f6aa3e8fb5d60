// Package dematel rebuilds DEMATEL direct-influence matrices from flat pairwise answers.
//
// Answers arrive as "left|right" -> "a|b" rows. Labels connected by at least one row
// form a cluster, and every cluster becomes its own square matrix.
package dematel

import (
	"sort"
	"strings"

	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

// Edge is one usable answer row.
type Edge struct {
	Left  string
	Right string
	Value string
}

// Cluster is a connected set of labels, sorted with CompareLabels.
type Cluster struct {
	Labels []string
}

// First returns the smallest label.
func (c Cluster) First() string {
	if len(c.Labels) == 0 {
		return ""
	}
	return c.Labels[0]
}

// Last returns the largest label.
func (c Cluster) Last() string {
	if len(c.Labels) == 0 {
		return ""
	}
	return c.Labels[len(c.Labels)-1]
}

// splitPair returns the first two '|'-separated fields of s. Fields past the
// second are ignored. found is false when s has no '|'.
func splitPair(s string) (first, second string, found bool) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) < 2 {
		return parts[0], "", false
	}
	return parts[0], parts[1], true
}

// ParseKey splits a "left|right" key. ok is false when the key has no '|' or
// either trimmed half is empty. "A|B|C" reads as the pair A, B.
func ParseKey(key string) (left, right string, ok bool) {
	left, right, found := splitPair(key)
	if !found {
		return "", "", false
	}
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

// Edges extracts the usable rows of raw, ordered by key. Malformed rows are dropped.
func Edges(raw map[string]string) []Edge {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	edges := make([]Edge, 0, len(keys))
	skipped := 0
	for _, k := range keys {
		left, right, ok := ParseKey(k)
		if !ok {
			skipped++
			continue
		}
		edges = append(edges, Edge{Left: left, Right: right, Value: raw[k]})
	}
	if skipped > 0 {
		logger.Debug("[Dematel] Ignored malformed answer rows", "count", skipped)
	}
	return edges
}

// BuildClusters partitions the labels of raw into connected components. Clusters are
// ordered by their first label; labels inside each cluster are sorted.
func BuildClusters(raw map[string]string) []Cluster {
	return clusterEdges(Edges(raw))
}

func clusterEdges(edges []Edge) []Cluster {
	adjacency := make(map[string][]string)
	var labels []string
	link := func(from, to string) {
		if _, ok := adjacency[from]; !ok {
			labels = append(labels, from)
		}
		adjacency[from] = append(adjacency[from], to)
	}
	for _, e := range edges {
		link(e.Left, e.Right)
		link(e.Right, e.Left)
	}

	visited := make(map[string]bool, len(labels))
	var clusters []Cluster
	for _, start := range labels {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []string{start}
		var members []string
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, cur)
			for _, next := range adjacency[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		SortLabels(members)
		clusters = append(clusters, Cluster{Labels: members})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return CompareLabels(clusters[i].First(), clusters[j].First()) < 0
	})
	return clusters
}
