package semgraph

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ClusterCount is the number of groups used for n vectors.
func ClusterCount(maxClusters, n int) int {
	if n < maxClusters {
		return n
	}
	return maxClusters
}

// Cluster partitions vectors with k-means into ClusterCount groups and
// returns one label per vector. Labels are renumbered in order of first
// appearance, so the first vector is always in group 0. vectors is only read.
func Cluster(vectors [][]float32, cfg ClusterConfig) ([]int, error) {
	cfg.ApplyDefaults()
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	n := len(vectors)
	if n == 0 {
		return []int{}, nil
	}
	k := ClusterCount(cfg.MaxClusters, n)
	points := make([][]float64, n)
	for i, v := range vectors {
		points[i] = toFloat64(v)
	}
	tol := cfg.Tolerance * meanVariance(points)
	rng := rand.New(rand.NewSource(cfg.Seed))

	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < cfg.NInit; run++ {
		labels, inertia := lloyd(points, seedCentroids(points, k, rng), cfg.MaxIter, tol)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return relabel(best), nil
}

// seedCentroids picks k starting centroids with k-means++.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), points[rng.Intn(n)]...))
	d2 := make([]float64, n)
	for i, p := range points {
		d2[i] = squaredDistance(p, centroids[0])
	}
	for len(centroids) < k {
		next := rng.Intn(n)
		if total := floats.Sum(d2); total > 0 {
			r := rng.Float64() * total
			var acc float64
			for i, d := range d2 {
				acc += d
				if d > 0 && acc >= r {
					next = i
					break
				}
			}
		}
		c := append([]float64(nil), points[next]...)
		centroids = append(centroids, c)
		for i, p := range points {
			d2[i] = math.Min(d2[i], squaredDistance(p, c))
		}
	}
	return centroids
}

// lloyd alternates assignment and centroid updates until the centroids move
// less than tol in total. Empty clusters keep their previous centroid.
func lloyd(points, centroids [][]float64, maxIter int, tol float64) ([]int, float64) {
	labels := make([]int, len(points))
	dims := len(points[0])
	for iter := 0; iter < maxIter; iter++ {
		assign(points, centroids, labels)
		sums := make([][]float64, len(centroids))
		counts := make([]int, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		var shift float64
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			shift += squaredDistance(centroids[c], sums[c])
			centroids[c] = sums[c]
		}
		if shift <= tol {
			break
		}
	}
	inertia := assign(points, centroids, labels)
	return labels, inertia
}

// assign labels every point with its nearest centroid, lower index on ties,
// and returns the total squared distance.
func assign(points, centroids [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range points {
		bestC, bestD := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredDistance(p, centroid); d < bestD {
				bestC, bestD = c, d
			}
		}
		labels[i] = bestC
		inertia += bestD
	}
	return inertia
}

func meanVariance(points [][]float64) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	data := mat.NewDense(n, len(points[0]), nil)
	for i, p := range points {
		data.SetRow(i, p)
	}
	_, cols := data.Dims()
	col := make([]float64, n)
	var total float64
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		total += stat.Variance(col, nil)
	}
	return total / float64(cols)
}

func relabel(labels []int) []int {
	remap := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := remap[l]
		if !ok {
			id = len(remap)
			remap[l] = id
		}
		out[i] = id
	}
	return out
}
