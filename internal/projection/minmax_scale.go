package projection

import (
	"gonum.org/v1/gonum/floats"
)

func MinMaxScale(values []float64) []float64 {
	result := make([]float64, len(values))
	copy(result, values)
	if len(result) == 0 {
		return result
	}

	min := floats.Min(result)
	max := floats.Max(result)

	if max != min {
		floats.AddConst(-min, result)
		floats.Scale(1.0/(max-min), result)
	} else {
		floats.Scale(0, result)
	}

	return result
}

// ScalePoints rescales X and Y independently to [0,1].
func ScalePoints(points []Point) []Point {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	xs, ys = MinMaxScale(xs), MinMaxScale(ys)
	out := make([]Point, len(points))
	for i, p := range points {
		p.X, p.Y = xs[i], ys[i]
		out[i] = p
	}
	return out
}
