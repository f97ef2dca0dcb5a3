package preprocessing

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SplitIndices shuffles [0, n) with seed and returns the train and test
// index sets. The test set holds ceil(testSize*n) rows.
func SplitIndices(n int, testSize float64, seed int) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValueError("SplitIndices", "not enough samples to split")
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit partitions the rows of X and y with SplitIndices.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	rX, _ := X.Dims()
	rY, _ := y.Dims()
	if rX != rY {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", rX, rY, 0)
	}
	train, test, err := SplitIndices(rX, testSize, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return SelectRows(X, train), SelectRows(X, test), SelectRows(y, train), SelectRows(y, test), nil
}

// SelectRows copies the given rows of m into a new matrix.
func SelectRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	if len(rows) == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
