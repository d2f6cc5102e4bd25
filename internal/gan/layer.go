package gan

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minBlockRows keeps row blocks large enough to be worth a goroutine.
const minBlockRows = 4

type activation int

const (
	actReLU activation = iota
	actLeakyReLU
	actSigmoid
)

func (a activation) String() string {
	switch a {
	case actReLU:
		return "relu"
	case actLeakyReLU:
		return "leaky_relu"
	case actSigmoid:
		return "sigmoid"
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// dense is a fully connected layer y = act(x·W + b) over row-major batches.
type dense struct {
	w     *mat.Dense // in × out
	b     []float64
	act   activation
	slope float64

	// workers bounds the row blocks multiplied concurrently.
	workers int

	// forward cache for the most recent batch
	x, z, a *mat.Dense
}

type layerGrads struct {
	dw *mat.Dense
	db []float64
}

// newDense initialises weights and biases uniformly in ±1/sqrt(in).
func newDense(in, out int, act activation, slope float64, rng *rand.Rand) *dense {
	bound := 1 / math.Sqrt(float64(in))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = (rng.Float64()*2 - 1) * bound
	}
	return &dense{w: mat.NewDense(in, out, w), b: b, act: act, slope: slope}
}

func (l *dense) dims() (in, out int) { return l.w.Dims() }

func (l *dense) activate(v float64) float64 {
	switch l.act {
	case actReLU:
		return math.Max(0, v)
	case actLeakyReLU:
		if v < 0 {
			return l.slope * v
		}
		return v
	default:
		return sigmoid(v)
	}
}

// derivative of the activation given pre-activation z and output a.
func (l *dense) derivative(z, a float64) float64 {
	switch l.act {
	case actReLU:
		if z > 0 {
			return 1
		}
		return 0
	case actLeakyReLU:
		if z > 0 {
			return 1
		}
		return l.slope
	default:
		return a * (1 - a)
	}
}

// mulRows sets dst = left·right, computing row blocks of dst concurrently.
// left(r0, r1) returns rows [r0, r1) of the left operand. Output rows only
// depend on their own left rows, so blocks are filled independently.
func mulRows(dst *mat.Dense, left func(r0, r1 int) mat.Matrix, right mat.Matrix, workers int) {
	rows, cols := dst.Dims()
	blocks := min(workers, rows/minBlockRows)
	if blocks <= 1 {
		dst.Mul(left(0, rows), right)
		return
	}
	size := (rows + blocks - 1) / blocks
	var g errgroup.Group
	for r0 := 0; r0 < rows; r0 += size {
		r1 := min(r0+size, rows)
		g.Go(func() error {
			dst.Slice(r0, r1, 0, cols).(*mat.Dense).Mul(left(r0, r1), right)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *dense) forward(x *mat.Dense) *mat.Dense {
	rows, in := x.Dims()
	_, out := l.dims()
	z := mat.NewDense(rows, out, nil)
	mulRows(z, func(r0, r1 int) mat.Matrix { return x.Slice(r0, r1, 0, in) }, l.w, l.workers)
	for i := 0; i < rows; i++ {
		floats.Add(z.RawRowView(i), l.b)
	}
	a := mat.NewDense(rows, out, nil)
	a.Apply(func(_, _ int, v float64) float64 { return l.activate(v) }, z)
	l.x, l.z, l.a = x, z, a
	return a
}

// preActivation converts d into dL/dz unless it already is one.
func (l *dense) preActivation(d *mat.Dense, isPre bool) *mat.Dense {
	if isPre {
		return d
	}
	rows, out := d.Dims()
	dz := mat.NewDense(rows, out, nil)
	dz.Apply(func(i, j int, v float64) float64 {
		return v * l.derivative(l.z.At(i, j), l.a.At(i, j))
	}, d)
	return dz
}

// inputGrad returns dL/dx for dL/dz.
func (l *dense) inputGrad(dz *mat.Dense) *mat.Dense {
	rows, out := dz.Dims()
	in, _ := l.dims()
	dx := mat.NewDense(rows, in, nil)
	mulRows(dx, func(r0, r1 int) mat.Matrix { return dz.Slice(r0, r1, 0, out) }, l.w.T(), l.workers)
	return dx
}

// backward propagates d through the layer. d is dL/da unless isPre is set, in
// which case it is already dL/dz.
func (l *dense) backward(d *mat.Dense, isPre bool) (layerGrads, *mat.Dense) {
	dz := l.preActivation(d, isPre)
	rows, out := dz.Dims()
	in, _ := l.dims()
	dw := mat.NewDense(in, out, nil)
	mulRows(dw, func(r0, r1 int) mat.Matrix { return l.x.Slice(0, rows, r0, r1).T() }, dz, l.workers)
	db := make([]float64, out)
	for i := 0; i < rows; i++ {
		floats.Add(db, dz.RawRowView(i))
	}
	return layerGrads{dw: dw, db: db}, l.inputGrad(dz)
}

// network is a stack of dense layers.
type network struct {
	layers []*dense
}

// newNetwork builds sizes[0] → … → sizes[len-1] with hidden activation on every
// layer but the last, which is sigmoid.
func newNetwork(sizes []int, hidden activation, slope float64, rng *rand.Rand) (*network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least input and output sizes, got %v", sizes)
	}
	n := &network{}
	for i := 0; i+1 < len(sizes); i++ {
		if sizes[i] <= 0 || sizes[i+1] <= 0 {
			return nil, fmt.Errorf("layer sizes must be positive, got %v", sizes)
		}
		act := hidden
		if i+2 == len(sizes) {
			act = actSigmoid
		}
		n.layers = append(n.layers, newDense(sizes[i], sizes[i+1], act, slope, rng))
	}
	return n, nil
}

func (n *network) forward(x *mat.Dense) *mat.Dense {
	out := x
	for _, l := range n.layers {
		out = l.forward(out)
	}
	return out
}

// backward runs back-propagation for the most recent forward call. When
// fromLogits is set, d is the gradient with respect to the output layer's
// pre-activation.
func (n *network) backward(d *mat.Dense, fromLogits bool) ([]layerGrads, *mat.Dense) {
	grads := make([]layerGrads, len(n.layers))
	cur := d
	pre := fromLogits
	for i := len(n.layers) - 1; i >= 0; i-- {
		grads[i], cur = n.layers[i].backward(cur, pre)
		pre = false
	}
	return grads, cur
}

// inputGrad back-propagates d to the network input without computing weight
// gradients.
func (n *network) inputGrad(d *mat.Dense, fromLogits bool) *mat.Dense {
	cur := d
	pre := fromLogits
	for i := len(n.layers) - 1; i >= 0; i-- {
		cur = n.layers[i].inputGrad(n.layers[i].preActivation(cur, pre))
		pre = false
	}
	return cur
}

func (n *network) setWorkers(workers int) {
	for _, l := range n.layers {
		l.workers = workers
	}
}

// params returns views over every trainable slice in a fixed order.
func (n *network) params() [][]float64 {
	out := make([][]float64, 0, 2*len(n.layers))
	for _, l := range n.layers {
		out = append(out, l.w.RawMatrix().Data, l.b)
	}
	return out
}

func flattenGrads(grads []layerGrads) [][]float64 {
	out := make([][]float64, 0, 2*len(grads))
	for _, g := range grads {
		out = append(out, g.dw.RawMatrix().Data, g.db)
	}
	return out
}

func addGrads(dst, src []layerGrads) {
	for i := range dst {
		dst[i].dw.Add(dst[i].dw, src[i].dw)
		floats.Add(dst[i].db, src[i].db)
	}
}

func (n *network) sizes() []int {
	if len(n.layers) == 0 {
		return nil
	}
	in, _ := n.layers[0].dims()
	out := []int{in}
	for _, l := range n.layers {
		_, o := l.dims()
		out = append(out, o)
	}
	return out
}
