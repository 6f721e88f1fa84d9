package kernel

// GRU implements the standard reset/update/candidate gated recurrent unit:
//
//	r = sigmoid(Wr x + Ur h + br)
//	z = sigmoid(Wz x + Uz h + bz)
//	n = tanh(Wn x + r*(Un h) + bn)
//	h' = (1-z)*n + z*h
//
// Gates are packed reset, update, candidate in that order within the
// borrowed weight slab, each laid out per graph.gateParamLength.
type GRU struct {
	hiddenSize       int
	reset, update, n *gate
	h                []float32 // owned hidden state
	rOut, zOut, uhOut, nOut []float32
}

// NewGRU constructs a GRU kernel bound to weights[offset:offset+paramLength].
func NewGRU(inputSize, hiddenSize int, weights []float32, offset int) (*GRU, error) {
	g := &GRU{
		hiddenSize: hiddenSize,
		reset:      newGate(inputSize, hiddenSize, true, true),
		update:     newGate(inputSize, hiddenSize, true, true),
		n:          newGate(inputSize, hiddenSize, true, true),
		h:          make([]float32, hiddenSize),
		rOut:       make([]float32, hiddenSize),
		zOut:       make([]float32, hiddenSize),
		uhOut:      make([]float32, hiddenSize),
		nOut:       make([]float32, hiddenSize),
	}
	if err := g.bind(weights, offset); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GRU) bind(weights []float32, offset int) error {
	off := offset
	if err := g.reset.bind(weights, off); err != nil {
		return err
	}
	off += g.reset.paramLength()
	if err := g.update.bind(weights, off); err != nil {
		return err
	}
	off += g.update.paramLength()
	return g.n.bind(weights, off)
}

// ParamLength is 3 * gateParamLength(inputSize, hiddenSize).
func (g *GRU) ParamLength() int {
	return g.reset.paramLength() + g.update.paramLength() + g.n.paramLength()
}

// Forward advances hidden state by one step and returns it.
func (g *GRU) Forward(input []float32) []float32 {
	g.reset.apply(input, g.h, g.rOut)
	g.update.apply(input, g.h, g.zOut)
	for i := range g.rOut {
		g.rOut[i] = sigmoid32(g.rOut[i])
		g.zOut[i] = sigmoid32(g.zOut[i])
	}

	// n = tanh(Wn x + r*(Un h) + bn): Un h and Wn x + bn are computed
	// separately so the reset gate can scale only the hidden term.
	g.n.applyHiddenOnly(g.h, g.uhOut)
	for i := range g.uhOut {
		g.uhOut[i] *= g.rOut[i]
	}
	g.n.applyInputBias(input, g.nOut)
	for i := range g.nOut {
		g.nOut[i] = tanh32(g.nOut[i] + g.uhOut[i])
	}

	for i := range g.h {
		g.h[i] = (1-g.zOut[i])*g.nOut[i] + g.zOut[i]*g.h[i]
	}
	return g.h
}

// Reset zeroes hidden state.
func (g *GRU) Reset() {
	for i := range g.h {
		g.h[i] = 0
	}
}

// Rebind repoints all three gates at offset within a same-shape weights slab.
func (g *GRU) Rebind(weights []float32, offset int) error {
	return g.bind(weights, offset)
}
