// Package brain executes a compiled graph (graph.Compiled) against a bound
// weight slab with zero per-pass allocation: every node's output buffer and
// every kernel's scratch state is allocated once at construction and reused
// on every subsequent Forward.
package brain

import (
	"fmt"

	"github.com/neuroevo-sim/infercore/graph"
	"github.com/neuroevo-sim/infercore/kernel"
)

// SizeMismatchError reports a weight slab whose length does not reconcile
// with the compiled graph's TotalParams.
type SizeMismatchError struct {
	Reason string
	Want   int
	Got    int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("brain: %s (want %d, got %d)", e.Reason, e.Want, e.Got)
}

func sizeMismatch(reason string, want, got int) error {
	return &SizeMismatchError{Reason: reason, Want: want, Got: got}
}

// Brain is the runtime for one compiled graph bound to one weight slab. A
// Brain is NOT thread-safe: callers running many brains concurrently (one
// per population slot, one per worker goroutine) must give each its own
// instance, as the pool package does.
type Brain struct {
	compiled *graph.Compiled
	slab     []float32

	kernels      []kernel.Kernel // nil for Input/Concat/Split
	outputs      [][]float32     // owned per-node output buffer
	gather       [][]float32     // owned per-node input-gather scratch
	splitOffsets [][]int         // cumulative port offsets, Split nodes only
	inputSrcIdx  [][]int         // per node, per Inputs entry: resolved source node index

	inputIdx  int // position of the graph's sole Input node
	resultBuf []float32
}

// New constructs a Brain for compiled, bound to slab. slab must be at least
// compiled.TotalParams long; rebind/construction is strict, matching New's
// own precondition (an Open Question in the originating design resolved in
// favor of never silently truncating a caller-supplied slab).
func New(compiled *graph.Compiled, slab []float32) (*Brain, error) {
	if len(slab) < compiled.TotalParams {
		return nil, sizeMismatch("weight slab shorter than graph's total parameter count", compiled.TotalParams, len(slab))
	}

	n := len(compiled.Nodes)
	b := &Brain{
		compiled:     compiled,
		slab:         slab,
		kernels:      make([]kernel.Kernel, n),
		outputs:      make([][]float32, n),
		gather:       make([][]float32, n),
		splitOffsets: make([][]int, n),
		inputSrcIdx:  make([][]int, n),
		inputIdx:     -1,
		resultBuf:    make([]float32, compiled.OutputSize),
	}

	for i, cn := range compiled.Nodes {
		idx := make([]int, len(cn.Inputs))
		for j, ref := range cn.Inputs {
			pos, ok := compiled.IndexOf(ref.FromID)
			if !ok {
				return nil, fmt.Errorf("brain: compiled graph references unresolved node %q", ref.FromID)
			}
			idx[j] = pos
		}
		b.inputSrcIdx[i] = idx

		if err := b.initNode(i, cn, slab); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Brain) initNode(i int, cn graph.CompiledNode, slab []float32) error {
	switch cn.Type {
	case graph.NodeInput:
		b.inputIdx = i
		b.outputs[i] = make([]float32, cn.OutputSize)
	case graph.NodeConcat:
		b.outputs[i] = make([]float32, cn.OutputSize)
		b.gather[i] = b.outputs[i] // concatenation IS the gather: no further transform
	case graph.NodeSplit:
		total := 0
		offsets := make([]int, len(cn.OutputSizes)+1)
		for j, s := range cn.OutputSizes {
			offsets[j] = total
			total += s
		}
		offsets[len(cn.OutputSizes)] = total
		b.splitOffsets[i] = offsets
		b.outputs[i] = make([]float32, total)
		b.gather[i] = b.outputs[i] // split's single input IS its output, just port-addressed
	case graph.NodeDense:
		k, err := kernel.NewDense(cn.InputSize, cn.OutputSize, slab, cn.ParamOffset)
		if err != nil {
			return err
		}
		b.kernels[i] = k
		b.gather[i] = make([]float32, cn.InputSize)
	case graph.NodeMLP:
		k, err := kernel.NewMLP(cn.HiddenSizes, slab, cn.ParamOffset)
		if err != nil {
			return err
		}
		b.kernels[i] = k
		b.gather[i] = make([]float32, cn.InputSize)
	case graph.NodeGRU:
		k, err := kernel.NewGRU(cn.InputSize, cn.HiddenSize, slab, cn.ParamOffset)
		if err != nil {
			return err
		}
		b.kernels[i] = k
		b.gather[i] = make([]float32, cn.InputSize)
	case graph.NodeLSTM:
		k, err := kernel.NewLSTM(cn.InputSize, cn.HiddenSize, slab, cn.ParamOffset)
		if err != nil {
			return err
		}
		b.kernels[i] = k
		b.gather[i] = make([]float32, cn.InputSize)
	case graph.NodeRRU:
		k, err := kernel.NewRRU(cn.InputSize, cn.HiddenSize, slab, cn.ParamOffset)
		if err != nil {
			return err
		}
		b.kernels[i] = k
		b.gather[i] = make([]float32, cn.InputSize)
	}
	return nil
}

// ParamLength is the compiled graph's total parameter count.
func (b *Brain) ParamLength() int {
	return b.compiled.TotalParams
}

// portSlice returns the live output buffer for nodeIdx's output port.
func (b *Brain) portSlice(nodeIdx, port int) []float32 {
	cn := b.compiled.Nodes[nodeIdx]
	if cn.Type == graph.NodeSplit {
		off := b.splitOffsets[nodeIdx]
		return b.outputs[nodeIdx][off[port]:off[port+1]]
	}
	return b.outputs[nodeIdx]
}

func (b *Brain) gatherInto(nodeIdx int, dst []float32) {
	cn := b.compiled.Nodes[nodeIdx]
	pos := 0
	for j, ref := range cn.Inputs {
		src := b.portSlice(b.inputSrcIdx[nodeIdx][j], ref.FromPort)
		n := copy(dst[pos:pos+ref.Size], src)
		pos += n
	}
}

// Forward runs one full pass over the compiled graph and returns the
// graph's output buffer. input is padded with zeros if shorter than the
// Input node's declared width, and truncated if longer. The returned slice
// is owned by the Brain and only valid until the next Forward.
func (b *Brain) Forward(input []float32) ([]float32, error) {
	if b.inputIdx < 0 {
		return nil, fmt.Errorf("brain: compiled graph has no Input node")
	}

	inBuf := b.outputs[b.inputIdx]
	n := copy(inBuf, input)
	for i := n; i < len(inBuf); i++ {
		inBuf[i] = 0
	}

	for i, cn := range b.compiled.Nodes {
		switch cn.Type {
		case graph.NodeInput:
			continue
		case graph.NodeConcat, graph.NodeSplit:
			b.gatherInto(i, b.gather[i])
		default:
			b.gatherInto(i, b.gather[i])
			out := b.kernels[i].Forward(b.gather[i])
			b.outputs[i] = out
		}
	}

	pos := 0
	for _, ref := range b.compiled.Outputs {
		idx, _ := b.compiled.IndexOf(ref.NodeID)
		src := b.portSlice(idx, ref.Port)
		pos += copy(b.resultBuf[pos:], src)
	}
	return b.resultBuf, nil
}

// Reset zeroes every kernel's hidden state. Output buffers are left as-is
// until the next Forward overwrites them.
func (b *Brain) Reset() {
	for _, k := range b.kernels {
		if k != nil {
			k.Reset()
		}
	}
}

// Rebind repoints every kernel's weight borrow at a new slab without
// reallocating any scratch buffer or hidden state. slab must be at least
// as long as the compiled graph's TotalParams; a shorter slab is always
// rejected rather than silently truncated.
func (b *Brain) Rebind(slab []float32) error {
	if len(slab) < b.compiled.TotalParams {
		return sizeMismatch("rebind weight slab shorter than graph's total parameter count", b.compiled.TotalParams, len(slab))
	}
	for i, cn := range b.compiled.Nodes {
		if b.kernels[i] == nil {
			continue
		}
		if err := b.kernels[i].Rebind(slab, cn.ParamOffset); err != nil {
			return err
		}
	}
	b.slab = slab
	return nil
}

// Layer is one node's entry in a VizData snapshot: its id, the width of its
// current output, a live view of that output, and whether it carries hidden
// state across Forward calls.
type Layer struct {
	ID          string
	Size        int
	Activation  []float32
	IsRecurrent bool
}

// VizData returns a read-only snapshot of every node's current output
// buffer, in the graph's topological order. The snapshot aliases live
// memory and is invalidated by the next Forward call; callers must consume
// it before calling Forward again.
func (b *Brain) VizData() []Layer {
	layers := make([]Layer, len(b.compiled.Nodes))
	for i, cn := range b.compiled.Nodes {
		layers[i] = Layer{
			ID:          cn.ID,
			Size:        len(b.outputs[i]),
			Activation:  b.outputs[i],
			IsRecurrent: isRecurrent(cn.Type),
		}
	}
	return layers
}

func isRecurrent(t graph.NodeType) bool {
	switch t {
	case graph.NodeGRU, graph.NodeLSTM, graph.NodeRRU:
		return true
	default:
		return false
	}
}
