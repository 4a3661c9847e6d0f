package semgraph

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	projectionDims = 3

	smoothKIters     = 64
	smoothKTolerance = 1e-5
	minKDistScale    = 1e-3

	gradientClip  = 4.0
	layoutExtent  = 10.0
	initNoise     = 1e-4
	spectralLimit = 256
)

type neighbor struct {
	idx  int
	dist float64
}

// edge is one undirected pair of the fuzzy neighborhood graph.
type edge struct {
	head, tail int
	weight     float64
}

// Project lays vectors out in 3-D so that points close in embedding space
// stay close. Identical vectors receive identical coordinates. vectors is
// only read, so Project may run alongside Cluster on the same slice.
func Project(vectors [][]float32, cfg ProjectorConfig) ([]Coordinate, error) {
	cfg.ApplyDefaults()
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	out := make([]Coordinate, len(vectors))
	points, owner := dedupe(vectors)
	if len(points) <= 1 {
		return out, nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	k := clampNeighbors(cfg.NNeighbors, len(points))
	edges := fuzzyGraph(nearestNeighbors(points, k), k)
	layout := initialLayout(len(points), edges, rng)
	a, b := fitCurve(cfg.MinDist, cfg.Spread)
	optimizeLayout(layout, edges, a, b, cfg, rng)
	for i, u := range owner {
		for d := 0; d < projectionDims; d++ {
			v := layout[u][d]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[i][d] = v
		}
	}
	return out, nil
}

// clampNeighbors keeps the neighborhood within the m-1 other points.
func clampNeighbors(n, m int) int {
	if n > m-1 {
		n = m - 1
	}
	if n < 1 {
		n = 1
	}
	return n
}

func checkDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	want := len(vectors[0])
	if want == 0 {
		return fmt.Errorf("vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), want)
		}
	}
	return nil
}

// dedupe collapses bit-identical vectors. owner maps every input to its
// representative in points.
func dedupe(vectors [][]float32) (points [][]float64, owner []int) {
	index := make(map[string]int, len(vectors))
	owner = make([]int, len(vectors))
	var buf []byte
	for i, v := range vectors {
		buf = buf[:0]
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		}
		key := string(buf)
		if u, ok := index[key]; ok {
			owner[i] = u
			continue
		}
		index[key] = len(points)
		owner[i] = len(points)
		points = append(points, toFloat64(v))
	}
	return points, owner
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// nearestNeighbors returns the k closest other points of every point, nearest
// first, lower index on ties. Only the k entries per row are retained.
func nearestNeighbors(points [][]float64, k int) [][]neighbor {
	m := len(points)
	out := make([][]neighbor, m)
	cands := make([]neighbor, 0, m-1)
	for i := range points {
		cands = cands[:0]
		for j := range points {
			if i == j {
				continue
			}
			cands = append(cands, neighbor{idx: j, dist: floats.Distance(points[i], points[j], 2)})
		}
		sort.SliceStable(cands, func(a, b int) bool {
			return cands[a].dist < cands[b].dist
		})
		out[i] = append([]neighbor(nil), cands[:k]...)
	}
	return out
}

// fuzzyGraph turns each local neighborhood into membership strengths and
// combines the directed memberships with the probabilistic t-conorm. Every
// undirected pair appears once, in neighbor order.
func fuzzyGraph(neighbors [][]neighbor, k int) []edge {
	target := math.Log2(float64(k) + 1)

	var total float64
	var count int
	for _, nb := range neighbors {
		for _, n := range nb {
			total += n.dist
			count++
		}
	}
	meanAll := total / float64(count)

	member := make([][]float64, len(neighbors))
	for i, nb := range neighbors {
		rho, sigma := smoothDistances(nb, target, meanAll)
		member[i] = make([]float64, len(nb))
		for p, n := range nb {
			val := 1.0
			if d := n.dist - rho; d > 0 {
				val = math.Exp(-d / sigma)
			}
			member[i][p] = val
		}
	}
	strength := func(i, j int) (float64, bool) {
		for p, n := range neighbors[i] {
			if n.idx == j {
				return member[i][p], true
			}
		}
		return 0, false
	}

	var edges []edge
	for i, nb := range neighbors {
		for p, n := range nb {
			j := n.idx
			b, mutual := strength(j, i)
			if mutual && j < i {
				continue
			}
			a := member[i][p]
			if w := a + b - a*b; w > 0 {
				edges = append(edges, edge{head: i, tail: j, weight: w})
			}
		}
	}
	return edges
}

// smoothDistances finds rho (distance to the nearest distinct neighbor) and
// sigma such that the neighborhood's total membership equals target.
func smoothDistances(nb []neighbor, target, meanAll float64) (rho, sigma float64) {
	var sum float64
	for _, n := range nb {
		sum += n.dist
		if rho == 0 && n.dist > 0 {
			rho = n.dist
		}
	}
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < smoothKIters; iter++ {
		var psum float64
		for _, n := range nb {
			if d := n.dist - rho; d > 0 {
				psum += math.Exp(-d / mid)
			} else {
				psum++
			}
		}
		if math.Abs(psum-target) < smoothKTolerance {
			break
		}
		if psum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	floor := minKDistScale * meanAll
	if rho > 0 {
		floor = minKDistScale * sum / float64(len(nb))
	}
	if mid < floor {
		mid = floor
	}
	if mid <= 0 {
		mid = math.SmallestNonzeroFloat64
	}
	return rho, mid
}

// initialLayout seeds the optimization with a spectral embedding of the graph,
// falling back to seeded uniform noise, and rescales every axis to
// [0, layoutExtent].
func initialLayout(m int, edges []edge, rng *rand.Rand) [][]float64 {
	layout, ok := spectralLayout(m, edges)
	if ok {
		var maxAbs float64
		for _, p := range layout {
			for _, v := range p {
				maxAbs = math.Max(maxAbs, math.Abs(v))
			}
		}
		expansion := 1.0
		if maxAbs > 0 {
			expansion = layoutExtent / maxAbs
		}
		for _, p := range layout {
			for d := range p {
				p[d] = p[d]*expansion + rng.NormFloat64()*initNoise
			}
		}
	} else {
		layout = make([][]float64, m)
		for i := range layout {
			layout[i] = make([]float64, projectionDims)
			for d := range layout[i] {
				layout[i][d] = rng.Float64()*2*layoutExtent - layoutExtent
			}
		}
	}
	for d := 0; d < projectionDims; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range layout {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		span := hi - lo
		for _, p := range layout {
			if span > 0 {
				p[d] = layoutExtent * (p[d] - lo) / span
			} else {
				p[d] = 0
			}
		}
	}
	return layout
}

// spectralLayout uses the eigenvectors of the normalized graph Laplacian with
// the smallest non-trivial eigenvalues as coordinates. The dense
// factorization is cubic in m, so graphs above spectralLimit are left to the
// uniform fallback.
func spectralLayout(m int, edges []edge) ([][]float64, bool) {
	if m < projectionDims+2 || m > spectralLimit {
		return nil, false
	}
	deg := make([]float64, m)
	for _, e := range edges {
		deg[e.head] += e.weight
		deg[e.tail] += e.weight
	}
	for _, d := range deg {
		if d == 0 {
			return nil, false
		}
	}
	lap := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		lap.SetSym(i, i, 1)
	}
	for _, e := range edges {
		lap.SetSym(e.head, e.tail, -e.weight/math.Sqrt(deg[e.head]*deg[e.tail]))
	}
	var eig mat.EigenSym
	if !eig.Factorize(lap, true) {
		return nil, false
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	layout := make([][]float64, m)
	for i := range layout {
		layout[i] = make([]float64, projectionDims)
	}
	for d := 0; d < projectionDims; d++ {
		col := order[d+1]
		// Eigenvectors are defined up to sign; pin it so the output is stable.
		sign := 1.0
		var peak float64
		for i := 0; i < m; i++ {
			if v := vecs.At(i, col); math.Abs(v) > math.Abs(peak) {
				peak = v
			}
		}
		if peak < 0 {
			sign = -1
		}
		for i := 0; i < m; i++ {
			v := sign * vecs.At(i, col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			layout[i][d] = v
		}
	}
	return layout, true
}

// fitCurve finds a, b so that 1/(1+a*x^(2b)) approximates the target
// low-dimensional membership implied by minDist and spread.
func fitCurve(minDist, spread float64) (a, b float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	floats.Span(xs, 0, 3*spread)
	for i, x := range xs {
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			a, b := math.Exp(p[0]), math.Exp(p[1])
			var loss float64
			for i, x := range xs {
				r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
				loss += r * r
			}
			return loss
		},
	}
	// A convergence complaint still leaves a usable best point in res.
	res, _ := optimize.Minimize(problem, []float64{0, 0}, nil, &optimize.NelderMead{})
	if res == nil || len(res.X) != 2 {
		return 1.577, 0.895
	}
	a, b = math.Exp(res.X[0]), math.Exp(res.X[1])
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 1.577, 0.895
	}
	return a, b
}

// optimizeLayout runs stochastic gradient descent on the cross entropy between
// the high-dimensional graph and the low-dimensional layout.
func optimizeLayout(layout [][]float64, edges []edge, a, b float64, cfg ProjectorConfig, rng *rand.Rand) {
	m := len(layout)
	nEpochs := float64(cfg.NEpochs)

	// Each undirected edge is sampled from both ends.
	heads := make([]int, 0, 2*len(edges))
	tails := make([]int, 0, 2*len(edges))
	weights := make([]float64, 0, 2*len(edges))
	var maxW float64
	for _, e := range edges {
		heads = append(heads, e.head, e.tail)
		tails = append(tails, e.tail, e.head)
		weights = append(weights, e.weight, e.weight)
		maxW = math.Max(maxW, e.weight)
	}
	if len(weights) == 0 {
		return
	}

	perSample := make([]float64, len(weights))
	perNegative := make([]float64, len(weights))
	for e, w := range weights {
		n := nEpochs * w / maxW
		if n < 1 {
			perSample[e] = -1
			continue
		}
		perSample[e] = nEpochs / n
		perNegative[e] = perSample[e] / float64(cfg.NegativeSampleRate)
	}
	nextSample := append([]float64(nil), perSample...)
	nextNegative := append([]float64(nil), perNegative...)

	for epoch := 0; epoch < cfg.NEpochs; epoch++ {
		n := float64(epoch)
		alpha := cfg.LearningRate * (1 - n/nEpochs)
		for e := range heads {
			if perSample[e] < 0 || nextSample[e] > n {
				continue
			}
			j := heads[e]
			cur, other := layout[j], layout[tails[e]]

			distSq := squaredDistance(cur, other)
			var coeff float64
			if distSq > 0 {
				coeff = -2 * a * b * math.Pow(distSq, b-1) / (a*math.Pow(distSq, b) + 1)
			}
			for d := 0; d < projectionDims; d++ {
				g := clip(coeff * (cur[d] - other[d]))
				cur[d] += g * alpha
				other[d] -= g * alpha
			}
			nextSample[e] += perSample[e]

			nNeg := int((n - nextNegative[e]) / perNegative[e])
			if nNeg < 0 {
				nNeg = 0
			}
			for p := 0; p < nNeg; p++ {
				k := rng.Intn(m)
				if k == j {
					continue
				}
				other := layout[k]
				distSq := squaredDistance(cur, other)
				coeff = 0
				if distSq > 0 {
					coeff = 2 * b / ((0.001 + distSq) * (a*math.Pow(distSq, b) + 1))
				}
				for d := 0; d < projectionDims; d++ {
					g := gradientClip
					if coeff > 0 {
						g = clip(coeff * (cur[d] - other[d]))
					}
					cur[d] += g * alpha
				}
			}
			nextNegative[e] += float64(nNeg) * perNegative[e]
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clip(v float64) float64 {
	if v > gradientClip {
		return gradientClip
	}
	if v < -gradientClip {
		return -gradientClip
	}
	return v
}
