package regression

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

// RandomForest averages bagged regression trees. Every split considers all
// columns; the randomness comes from the bootstrap samples.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int // 0 grows until leaves are pure
	MinSamplesSplit int
	Workers         int // 0 uses GOMAXPROCS
	Seed            int64

	trees []*tree
	width int
}

// NewRandomForest returns a forest with 100 fully grown trees.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

// Fit grows the trees concurrently. Tree seeds are drawn up front so the
// result does not depend on the number of workers.
func (rf *RandomForest) Fit(ctx context.Context, X [][]float64, y []float64) error {
	_, width, err := validate(X, y)
	if err != nil {
		return err
	}

	n := rf.NEstimators
	if n < 1 {
		n = 1
	}
	rng := rand.New(rand.NewSource(rf.Seed))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*tree, n)
	indexStream := generator(ctx.Done(), n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexStream {
				trees[i] = rf.growTree(X, y, rand.New(rand.NewSource(seeds[i])))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	rf.trees = trees
	rf.width = width
	return nil
}

// Predict returns the mean of the tree estimates.
func (rf *RandomForest) Predict(x []float64) float64 {
	if len(rf.trees) == 0 || len(x) != rf.width {
		return math.NaN()
	}
	var sum float64
	for _, t := range rf.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(rf.trees))
}

func generator(done <-chan struct{}, size int) <-chan int {
	intStream := make(chan int)
	go func() {
		defer close(intStream)
		for i := 0; i < size; i++ {
			select {
			case <-done:
				return
			case intStream <- i:
			}
		}
	}()
	return intStream
}

func (rf *RandomForest) growTree(X [][]float64, y []float64, rng *rand.Rand) *tree {
	n := len(y)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}

	minSplit := rf.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	b := &treeBuilder{
		X:        X,
		y:        y,
		width:    len(X[0]),
		maxDepth: rf.MaxDepth,
		minSplit: minSplit,
		order:    make([]int, n),
	}
	b.grow(sample, 0)
	return &tree{nodes: b.nodes}
}

type node struct {
	feature     int // -1 for leaves
	threshold   float64
	left, right int
	value       float64
}

type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		nd := &t.nodes[i]
		if nd.feature < 0 {
			return nd.value
		}
		if x[nd.feature] <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
	}
}

type treeBuilder struct {
	X        [][]float64
	y        []float64
	width    int
	maxDepth int
	minSplit int
	nodes    []node
	order    []int
}

// grow appends the subtree for rows idx and returns its root. idx is
// reordered in place.
func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)

	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := b.y[i]
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	b.nodes = append(b.nodes, node{feature: -1, value: sum / float64(len(idx))})

	if len(idx) < b.minSplit || lo == hi || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return id
	}
	feature, threshold, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}

	split := 0
	for k, i := range idx {
		if b.X[i][feature] <= threshold {
			idx[split], idx[k] = idx[k], idx[split]
			split++
		}
	}
	left := b.grow(idx[:split], depth+1)
	right := b.grow(idx[split:], depth+1)

	b.nodes[id].feature = feature
	b.nodes[id].threshold = threshold
	b.nodes[id].left = left
	b.nodes[id].right = right
	return id
}

// bestSplit finds the cut that minimizes the summed squared error of the two
// children, which is the cut maximizing sumL²/nL + sumR²/nR.
func (b *treeBuilder) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	order := b.order[:n]

	bestFeature := -1
	var bestThreshold float64
	bestScore := math.Inf(-1)

	for f := 0; f < b.width; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool {
			return b.X[order[a]][f] < b.X[order[c]][f]
		})

		var left float64
		for k := 0; k < n-1; k++ {
			left += b.y[order[k]]
			cur, next := b.X[order[k]][f], b.X[order[k+1]][f]
			if cur == next {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			right := total - left
			score := left*left/nl + right*right/nr
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				if bestThreshold >= next {
					bestThreshold = cur
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
