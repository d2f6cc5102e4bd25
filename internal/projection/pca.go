package projection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects the rows of x onto their first two principal components.
// Columns are centred, not scaled. Each component's sign is fixed so that its
// largest-magnitude loading is positive.
func PCA(x *mat.Dense) ([][2]float64, error) {
	rows, cols := x.Dims()
	out := make([][2]float64, rows)
	if rows < 2 {
		return out, nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed for %dx%d input", rows, cols)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, k := vecs.Dims()

	means := make([]float64, cols)
	for j := 0; j < cols; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	centred := mat.NewDense(rows, cols, nil)
	centred.Apply(func(_, j int, v float64) float64 { return v - means[j] }, x)

	for c := 0; c < min(k, 2); c++ {
		dir := mat.Col(nil, c, &vecs)
		flipSign(dir)
		proj := mat.NewVecDense(rows, nil)
		proj.MulVec(centred, mat.NewVecDense(cols, dir))
		for i := 0; i < rows; i++ {
			out[i][c] = proj.AtVec(i)
		}
	}
	return out, nil
}

func flipSign(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}
