package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit returns train and test row indices. Rows are grouped by
// target value and each group contributes round(len*testRatio) rows to the
// test set, so every rating keeps its share on both sides. Groups of one row
// stay in training.
func StratifiedSplit(y []float64, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0, 1), got %f", testRatio)
	}
	if len(y) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, got %d", len(y))
	}

	groups := make(map[float64][]int)
	for i, v := range y {
		groups[v] = append(groups[v], i)
	}
	labels := make([]float64, 0, len(groups))
	for v := range groups {
		labels = append(labels, v)
	}
	sort.Float64s(labels)

	rng := rand.New(rand.NewSource(seed))
	for _, v := range labels {
		idx := groups[v]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := int(math.Round(float64(len(idx)) * testRatio))
		if n >= len(idx) {
			n = len(idx) - 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}

	if len(test) == 0 {
		return nil, nil, fmt.Errorf("test split is empty for %d rows at ratio %.2f", len(y), testRatio)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// KFold partitions 0..n-1 into k contiguous folds and returns the held-out
// indices of each. Earlier folds take the remainder rows.
func KFold(n, k int) ([][]int, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, n)
	}
	folds := make([][]int, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = start + i
		}
		folds[f] = fold
		start += size
	}
	return folds, nil
}

func selectRows(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}

// complement returns the indices of 0..n-1 not in held (held must be sorted).
func complement(n int, held []int) []int {
	out := make([]int, 0, n-len(held))
	h := 0
	for i := 0; i < n; i++ {
		if h < len(held) && held[h] == i {
			h++
			continue
		}
		out = append(out, i)
	}
	return out
}
