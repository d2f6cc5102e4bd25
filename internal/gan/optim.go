package gan

import "math"

// adam keeps first and second moment estimates for one network's parameters.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(params [][]float64, lr, beta1, beta2, eps float64) *adam {
	o := &adam{lr: lr, beta1: beta1, beta2: beta2, eps: eps}
	for _, p := range params {
		o.m = append(o.m, make([]float64, len(p)))
		o.v = append(o.v, make([]float64, len(p)))
	}
	return o
}

func (o *adam) step(params, grads [][]float64) {
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, p := range params {
		g, m, v := grads[i], o.m[i], o.v[i]
		for j := range p {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g[j]
			v[j] = o.beta2*v[j] + (1-o.beta2)*g[j]*g[j]
			mhat := m[j] / c1
			vhat := v[j] / c2
			p[j] -= o.lr * mhat / (math.Sqrt(vhat) + o.eps)
		}
	}
}

// logFloor bounds log terms so a saturated sigmoid yields a large finite loss.
const logFloor = -100

func clampedLog(x float64) float64 {
	if x <= 0 {
		return logFloor
	}
	return math.Max(math.Log(x), logFloor)
}

// bce is the mean binary cross-entropy of probabilities p against a constant target.
func bce(p []float64, target float64) float64 {
	if len(p) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p {
		sum -= target*clampedLog(v) + (1-target)*clampedLog(1-v)
	}
	return sum / float64(len(p))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
