package kernel

// RRU is a reduced recurrent unit: the input is projected linearly, a
// sigmoid reset gate attenuates the previous hidden state using only a
// hidden-to-hidden weight (no bias, no direct input term), and a sigmoid
// update gate mixes the linear projection with the reset-attenuated hidden
// state:
//
//	p = Wp x + bp
//	r = sigmoid(Ur h)
//	z = sigmoid(Wz x + Uz h + bz)
//	h' = z*p + (1-z)*(r*h)
//
// The projection (Wp, bp) and reset gate (Ur only) are deliberately
// smaller than a full gate block; their combined size plus the full update
// gate block equals exactly 2*graph.gateParamLength(inputSize, hiddenSize),
// which is what graph.paramLength budgets for an RRU node.
type RRU struct {
	hiddenSize      int
	wp, bp          []float32 // hiddenSize*inputSize, hiddenSize
	ur              []float32 // hiddenSize*hiddenSize
	update          *gate
	h               []float32
	pOut, rOut, zOut, rhOut []float32
}

// NewRRU constructs an RRU kernel bound to weights[offset:offset+paramLength].
func NewRRU(inputSize, hiddenSize int, weights []float32, offset int) (*RRU, error) {
	r := &RRU{
		hiddenSize: hiddenSize,
		update:     newGate(inputSize, hiddenSize, true, true),
		h:          make([]float32, hiddenSize),
		pOut:       make([]float32, hiddenSize),
		rOut:       make([]float32, hiddenSize),
		zOut:       make([]float32, hiddenSize),
		rhOut:      make([]float32, hiddenSize),
	}
	if err := r.bind(weights, offset); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RRU) bind(weights []float32, offset int) error {
	inputSize := r.update.inputSize
	off := offset
	if err := rebindBorrow(&r.wp, weights, off, r.hiddenSize*inputSize); err != nil {
		return err
	}
	off += r.hiddenSize * inputSize
	if err := rebindBorrow(&r.bp, weights, off, r.hiddenSize); err != nil {
		return err
	}
	off += r.hiddenSize
	if err := rebindBorrow(&r.ur, weights, off, r.hiddenSize*r.hiddenSize); err != nil {
		return err
	}
	off += r.hiddenSize * r.hiddenSize
	return r.update.bind(weights, off)
}

// ParamLength is 2 * gateParamLength(inputSize, hiddenSize).
func (r *RRU) ParamLength() int {
	inputSize := r.update.inputSize
	projLen := r.hiddenSize*inputSize + r.hiddenSize
	resetLen := r.hiddenSize * r.hiddenSize
	return projLen + resetLen + r.update.paramLength()
}

// Forward advances hidden state by one step and returns it.
func (r *RRU) Forward(input []float32) []float32 {
	inputSize := r.update.inputSize
	for o := 0; o < r.hiddenSize; o++ {
		sum := r.bp[o]
		row := r.wp[o*inputSize : (o+1)*inputSize]
		for i, v := range input {
			sum += row[i] * v
		}
		r.pOut[o] = sum
	}
	for o := 0; o < r.hiddenSize; o++ {
		var sum float32
		row := r.ur[o*r.hiddenSize : (o+1)*r.hiddenSize]
		for i, v := range r.h {
			sum += row[i] * v
		}
		r.rOut[o] = sigmoid32(sum)
	}
	r.update.apply(input, r.h, r.zOut)
	for i := range r.h {
		z := sigmoid32(r.zOut[i])
		rh := r.rOut[i] * r.h[i]
		r.h[i] = z*r.pOut[i] + (1-z)*rh
	}
	return r.h
}

// Reset zeroes hidden state.
func (r *RRU) Reset() {
	for i := range r.h {
		r.h[i] = 0
	}
}

// Rebind repoints the projection, reset, and update weights at offset
// within a same-shape weights slab.
func (r *RRU) Rebind(weights []float32, offset int) error {
	return r.bind(weights, offset)
}
