package kernel

// gate is one input-to-hidden/hidden-to-hidden/bias block shared by
// GRU/LSTM/RRU gates: activation(Wx x + Uh h + b). Its weight layout is
// [W (hidden*input), U (hidden*hidden), b (hidden)], matching
// graph.gateParamLength.
type gate struct {
	inputSize, hiddenSize int
	w, u, b               []float32
	hasU, hasB            bool
}

func newGate(inputSize, hiddenSize int, hasU, hasB bool) *gate {
	return &gate{inputSize: inputSize, hiddenSize: hiddenSize, hasU: hasU, hasB: hasB}
}

func (g *gate) paramLength() int {
	n := g.inputSize * g.hiddenSize
	if g.hasU {
		n += g.hiddenSize * g.hiddenSize
	}
	if g.hasB {
		n += g.hiddenSize
	}
	return n
}

func (g *gate) bind(weights []float32, offset int) error {
	off := offset
	wLen := g.inputSize * g.hiddenSize
	if err := rebindBorrow(&g.w, weights, off, wLen); err != nil {
		return err
	}
	off += wLen
	if g.hasU {
		uLen := g.hiddenSize * g.hiddenSize
		if err := rebindBorrow(&g.u, weights, off, uLen); err != nil {
			return err
		}
		off += uLen
	}
	if g.hasB {
		if err := rebindBorrow(&g.b, weights, off, g.hiddenSize); err != nil {
			return err
		}
	}
	return nil
}

// apply computes Wx + Uh (if present) + b (if present) into dst.
func (g *gate) apply(x, h, dst []float32) {
	for o := 0; o < g.hiddenSize; o++ {
		var sum float32
		if g.hasB {
			sum = g.b[o]
		}
		row := g.w[o*g.inputSize : (o+1)*g.inputSize]
		for i, v := range x {
			sum += row[i] * v
		}
		if g.hasU {
			urow := g.u[o*g.hiddenSize : (o+1)*g.hiddenSize]
			for i, v := range h {
				sum += urow[i] * v
			}
		}
		dst[o] = sum
	}
}

// applyInputBias computes Wx + b into dst, ignoring any U term. Used by
// gates whose hidden-to-hidden contribution must be computed separately
// (GRU's candidate gate, which scales Uh by the reset gate before summing).
func (g *gate) applyInputBias(x, dst []float32) {
	for o := 0; o < g.hiddenSize; o++ {
		var sum float32
		if g.hasB {
			sum = g.b[o]
		}
		row := g.w[o*g.inputSize : (o+1)*g.inputSize]
		for i, v := range x {
			sum += row[i] * v
		}
		dst[o] = sum
	}
}

// applyHiddenOnly computes Uh into dst, ignoring W/x and any bias.
func (g *gate) applyHiddenOnly(h, dst []float32) {
	for o := 0; o < g.hiddenSize; o++ {
		var sum float32
		urow := g.u[o*g.hiddenSize : (o+1)*g.hiddenSize]
		for i, v := range h {
			sum += urow[i] * v
		}
		dst[o] = sum
	}
}
