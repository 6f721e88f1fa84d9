package kernel

// MLP is a fixed chain of Dense layers over [inputSize, hiddenSizes...,
// outputSize] with tanh applied after every hidden layer and no activation
// on the final layer, matching graph.mlpChain/denseParamLength's layout:
// the chain's Dense sub-layers are packed back to back in declaration
// order within the borrowed weight slab.
type MLP struct {
	layers []*Dense
	chain  []int
}

// NewMLP constructs an MLP kernel bound to weights[offset:offset+paramLength].
func NewMLP(chain []int, weights []float32, offset int) (*MLP, error) {
	m := &MLP{chain: chain}
	off := offset
	for i := 0; i+1 < len(chain); i++ {
		layer, err := NewDense(chain[i], chain[i+1], weights, off)
		if err != nil {
			return nil, err
		}
		m.layers = append(m.layers, layer)
		off += layer.ParamLength()
	}
	return m, nil
}

// ParamLength is the sum of every Dense sub-layer's parameter count.
func (m *MLP) ParamLength() int {
	total := 0
	for _, l := range m.layers {
		total += l.ParamLength()
	}
	return total
}

// Forward runs the full Dense+tanh chain, returning the final layer's
// (unactivated) output scratch.
func (m *MLP) Forward(input []float32) []float32 {
	x := input
	for i, layer := range m.layers {
		out := layer.Forward(x)
		if i < len(m.layers)-1 {
			for j, v := range out {
				out[j] = tanh32(v)
			}
		}
		x = out
	}
	return x
}

// Reset is a no-op: MLP has no hidden state.
func (m *MLP) Reset() {}

// Rebind repoints every sub-layer at offset within a same-shape weights slab.
func (m *MLP) Rebind(weights []float32, offset int) error {
	off := offset
	for _, l := range m.layers {
		if err := l.Rebind(weights, off); err != nil {
			return err
		}
		off += l.ParamLength()
	}
	return nil
}
