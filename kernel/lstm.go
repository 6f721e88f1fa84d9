package kernel

// LSTM implements the standard input/forget/candidate/output gated cell:
//
//	i = sigmoid(Wi x + Ui h + bi)
//	f = sigmoid(Wf x + Uf h + bf)
//	g = tanh(Wg x + Ug h + bg)
//	o = sigmoid(Wo x + Uo h + bo)
//	c' = f*c + i*g
//	h' = o*tanh(c')
//
// Gates are packed input, forget, candidate, output in that order within
// the borrowed weight slab, each laid out per graph.gateParamLength.
type LSTM struct {
	hiddenSize                 int
	in, forget, cand, out      *gate
	h, c                       []float32 // owned hidden/cell state
	iOut, fOut, gOut, oOut     []float32
}

// NewLSTM constructs an LSTM kernel bound to weights[offset:offset+paramLength].
func NewLSTM(inputSize, hiddenSize int, weights []float32, offset int) (*LSTM, error) {
	l := &LSTM{
		hiddenSize: hiddenSize,
		in:         newGate(inputSize, hiddenSize, true, true),
		forget:     newGate(inputSize, hiddenSize, true, true),
		cand:       newGate(inputSize, hiddenSize, true, true),
		out:        newGate(inputSize, hiddenSize, true, true),
		h:          make([]float32, hiddenSize),
		c:          make([]float32, hiddenSize),
		iOut:       make([]float32, hiddenSize),
		fOut:       make([]float32, hiddenSize),
		gOut:       make([]float32, hiddenSize),
		oOut:       make([]float32, hiddenSize),
	}
	if err := l.bind(weights, offset); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LSTM) bind(weights []float32, offset int) error {
	off := offset
	for _, g := range []*gate{l.in, l.forget, l.cand, l.out} {
		if err := g.bind(weights, off); err != nil {
			return err
		}
		off += g.paramLength()
	}
	return nil
}

// ParamLength is 4 * gateParamLength(inputSize, hiddenSize).
func (l *LSTM) ParamLength() int {
	return l.in.paramLength() + l.forget.paramLength() + l.cand.paramLength() + l.out.paramLength()
}

// Forward advances hidden/cell state by one step and returns the hidden
// state.
func (l *LSTM) Forward(input []float32) []float32 {
	l.in.apply(input, l.h, l.iOut)
	l.forget.apply(input, l.h, l.fOut)
	l.cand.apply(input, l.h, l.gOut)
	l.out.apply(input, l.h, l.oOut)
	for i := range l.c {
		iv := sigmoid32(l.iOut[i])
		fv := sigmoid32(l.fOut[i])
		gv := tanh32(l.gOut[i])
		ov := sigmoid32(l.oOut[i])
		l.c[i] = fv*l.c[i] + iv*gv
		l.h[i] = ov * tanh32(l.c[i])
	}
	return l.h
}

// Reset zeroes hidden and cell state.
func (l *LSTM) Reset() {
	for i := range l.h {
		l.h[i] = 0
		l.c[i] = 0
	}
}

// Rebind repoints all four gates at offset within a same-shape weights slab.
func (l *LSTM) Rebind(weights []float32, offset int) error {
	return l.bind(weights, offset)
}
