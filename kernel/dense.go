package kernel

// Dense computes y = Wx + b for a fixed inputSize -> outputSize shape. W is
// stored row-major (outputSize rows of inputSize columns) immediately
// followed by the length-outputSize bias vector in the borrowed weight
// slab, matching graph.paramLength's layout for NodeDense.
type Dense struct {
	inputSize, outputSize int
	w                     []float32 // outputSize*inputSize, borrowed
	b                     []float32 // outputSize, borrowed
	out                   []float32 // outputSize, owned
}

// NewDense constructs a Dense kernel bound to weights[offset:offset+paramLength].
func NewDense(inputSize, outputSize int, weights []float32, offset int) (*Dense, error) {
	d := &Dense{
		inputSize:  inputSize,
		outputSize: outputSize,
		out:        make([]float32, outputSize),
	}
	if err := d.bind(weights, offset); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dense) bind(weights []float32, offset int) error {
	wLen := d.inputSize * d.outputSize
	if err := rebindBorrow(&d.w, weights, offset, wLen); err != nil {
		return err
	}
	return rebindBorrow(&d.b, weights, offset+wLen, d.outputSize)
}

// ParamLength is inputSize*outputSize + outputSize.
func (d *Dense) ParamLength() int {
	return d.inputSize*d.outputSize + d.outputSize
}

// Forward writes Wx+b into the kernel's owned output scratch.
func (d *Dense) Forward(input []float32) []float32 {
	for o := 0; o < d.outputSize; o++ {
		sum := d.b[o]
		row := d.w[o*d.inputSize : (o+1)*d.inputSize]
		for i, x := range input {
			sum += row[i] * x
		}
		d.out[o] = sum
	}
	return d.out
}

// Reset is a no-op: Dense has no hidden state.
func (d *Dense) Reset() {}

// Rebind repoints w/b at offset within a same-shape weights slab.
func (d *Dense) Rebind(weights []float32, offset int) error {
	return d.bind(weights, offset)
}
