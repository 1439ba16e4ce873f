package consensus

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/abelbrown/skyrank/internal/model"
)

// maxSpread is the largest normalized mean pairwise distance a set of
// voters may have and still be reported as one group.
const maxSpread = 0.5

// partition assigns each point a group label in [0, k). k is picked by mean
// silhouette over 2..MaxClusters. Fewer than two distinct points give one
// group. A best score under MinSilhouette also gives one group, unless the
// points are too spread out to count as similar (see spread).
//
// Returns the labels and the silhouette of the chosen split (0 for k = 1).
func partition(points [][]float64, opts Options) ([]int, float64) {
	single := make([]int, len(points))

	maxK := min(opts.MaxClusters, distinct(points))
	if maxK < 2 {
		return single, 0
	}

	best, bestScore := single, math.Inf(-1)
	for k := 2; k <= maxK; k++ {
		labels, n := kmeans(points, k, opts.MaxIterations)
		if n < 2 {
			continue
		}
		// Strictly greater keeps the smaller k on ties
		if s := silhouette(points, labels, n); s > bestScore {
			best, bestScore = labels, s
		}
	}

	if math.IsInf(bestScore, -1) {
		return single, 0
	}
	if bestScore < opts.MinSilhouette && spread(points) <= maxSpread {
		return single, 0
	}
	return best, bestScore
}

// spread is the mean pairwise Euclidean distance divided by the largest
// possible one, 2*sqrt(dims) for coordinates in [-1, 1]. 0 means every
// point is identical, 1 means every pair is opposite on every coordinate.
func spread(points [][]float64) float64 {
	if len(points) < 2 || len(points[0]) == 0 {
		return 0
	}
	var sum float64
	pairs := 0
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			sum += math.Sqrt(sqDist(points[i], points[j]))
			pairs++
		}
	}
	return sum / float64(pairs) / (2 * math.Sqrt(float64(len(points[0]))))
}

// distinct counts unique points.
func distinct(points [][]float64) int {
	seen := make(map[string]struct{}, len(points))
	var b strings.Builder
	for _, p := range points {
		b.Reset()
		for _, x := range p {
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
			b.WriteByte(',')
		}
		seen[b.String()] = struct{}{}
	}
	return len(seen)
}

// kmeans runs Lloyd's algorithm from farthest-point seeds. Seeding starts at
// the first point and repeatedly adds the point farthest from all chosen
// seeds, lowest index on ties, so results are deterministic.
//
// Empty groups are dropped; the returned labels are compacted to [0, n).
func kmeans(points [][]float64, k, maxIter int) ([]int, int) {
	maxIter = max(maxIter, 1)
	centroids := seed(points, k)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			c := nearest(p, centroids)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recenter(points, labels, centroids)
	}

	return compact(labels)
}

func seed(points [][]float64, k int) [][]float64 {
	centroids := [][]float64{clone(points[0])}
	minDist := make([]float64, len(points))
	for i, p := range points {
		minDist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		far := 0
		for i := range points {
			if minDist[i] > minDist[far] {
				far = i
			}
		}
		if minDist[far] == 0 {
			break
		}
		c := clone(points[far])
		centroids = append(centroids, c)
		for i, p := range points {
			minDist[i] = math.Min(minDist[i], sqDist(p, c))
		}
	}
	return centroids
}

// nearest returns the index of the closest centroid, lowest index on ties.
func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recenter moves each centroid to the mean of its points. A centroid that
// lost all its points stays where it was.
func recenter(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	dims := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for d, x := range p {
			sums[c][d] += x
		}
	}

	next := make([][]float64, len(prev))
	for c := range next {
		if counts[c] == 0 {
			next[c] = prev[c]
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
		next[c] = sums[c]
	}
	return next
}

// compact renumbers labels densely in order of first use.
func compact(labels []int) ([]int, int) {
	remap := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		n, ok := remap[l]
		if !ok {
			n = len(remap)
			remap[l] = n
		}
		out[i] = n
	}
	return out, len(remap)
}

// silhouette is the mean silhouette coefficient over all points, using
// Euclidean distance. Points alone in their group score 0.
func silhouette(points [][]float64, labels []int, k int) float64 {
	if len(points) == 0 {
		return 0
	}

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	var total float64
	sums := make([]float64, k)
	for i, p := range points {
		if sizes[labels[i]] < 2 {
			continue
		}
		clear(sums)
		for j, q := range points {
			if i != j {
				sums[labels[j]] += math.Sqrt(sqDist(p, q))
			}
		}

		own := labels[i]
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && sizes[c] > 0 {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if m := math.Max(a, b); m > 0 && !math.IsInf(b, 1) {
			total += (b - a) / m
		}
	}
	return total / float64(len(points))
}

// buildClusters groups voters by label. Clusters are ordered by size, then
// by their earliest member; IDs follow that order.
func buildClusters(voters []*voter, labels []int) []model.Cluster {
	groups := make(map[int]*model.Cluster)
	first := make(map[int]int)
	var order []int
	for i, vt := range voters {
		l := labels[i]
		g, ok := groups[l]
		if !ok {
			g = &model.Cluster{MemberIDs: []string{}}
			groups[l] = g
			first[l] = i
			order = append(order, l)
		}
		g.MemberIDs = append(g.MemberIDs, vt.id)
		g.MemberCount++
		g.AvgAgreement += vt.agreement()
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if a.MemberCount != b.MemberCount {
			return a.MemberCount > b.MemberCount
		}
		return first[order[i]] < first[order[j]]
	})

	clusters := make([]model.Cluster, 0, len(order))
	for id, l := range order {
		g := groups[l]
		g.ID = id
		g.AvgAgreement /= float64(g.MemberCount)
		clusters = append(clusters, *g)
	}
	return clusters
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
