package dematel

import (
	"math"
	"strconv"
	"strings"
)

// Matrix is the direct-influence matrix of one cluster. Values[i][j] is the
// influence of Labels[i] on Labels[j].
type Matrix struct {
	Labels []string
	Values [][]float64
	Group  string
}

// GroupLabel names a cluster by its first and last label.
func GroupLabel(c Cluster) string {
	return c.First() + "-" + c.Last()
}

// BuildMatrix places every row of raw whose labels both belong to c. The left score
// lands at (left, right) and the right score at (right, left). Scores are passed
// through unscaled; tokens that are not finite numbers count as 0.
func BuildMatrix(c Cluster, raw map[string]string) Matrix {
	return buildMatrix(c, Edges(raw))
}

// BuildMatrices clusters raw and builds one matrix per cluster, in cluster order.
func BuildMatrices(raw map[string]string) []Matrix {
	edges := Edges(raw)
	clusters := clusterEdges(edges)
	out := make([]Matrix, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, buildMatrix(c, edges))
	}
	return out
}

func buildMatrix(c Cluster, edges []Edge) Matrix {
	n := len(c.Labels)
	index := make(map[string]int, n)
	for i, l := range c.Labels {
		index[l] = i
	}

	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
	}

	for _, e := range edges {
		i, okL := index[e.Left]
		j, okR := index[e.Right]
		if !okL || !okR {
			continue
		}
		a, b, _ := splitPair(strings.TrimSpace(e.Value))
		values[i][j] = score(a)
		values[j][i] = score(b)
	}

	return Matrix{
		Labels: append([]string(nil), c.Labels...),
		Values: values,
		Group:  GroupLabel(c),
	}
}

func score(token string) float64 {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
