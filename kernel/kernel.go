// Package kernel implements the op kernels (Dense, MLP, GRU, LSTM, RRU) that
// back one node of a compiled graph's forward pass. Every kernel is a small
// stateful object holding shape parameters, a borrow into a weight slab, and
// owned scratch output (plus owned hidden state for recurrent cells); none
// of them allocate once constructed.
package kernel

import (
	"math"

	"github.com/neuroevo-sim/infercore/graph"
)

// Kernel is the three-operation contract every op kernel implements:
// forward/step, reset, and rebind. Stateless kernels (Dense, MLP) treat
// Forward as a pure function of input; recurrent kernels (GRU, LSTM, RRU)
// update their owned hidden state in place and return it.
//
// A tagged-variant dispatch (graph.CompiledNode.Type switch, see brain.New)
// selects which concrete kernel to construct, rather than an
// interface-per-node-kind hierarchy with virtual calls on the hot path.
type Kernel interface {
	// Forward writes to and returns the kernel's owned output scratch.
	// The returned slice is only valid until the next call.
	Forward(input []float32) []float32
	// Reset zeroes hidden state. No-op for stateless kernels.
	Reset()
	// Rebind repoints the kernel's weight borrow at offset within a
	// same-shape slab, without reallocating scratch or hidden state.
	Rebind(weights []float32, offset int) error
	// ParamLength is this kernel's slice of a weight slab.
	ParamLength() int
}

// Capability names a numeric implementation a kernel can bind to. Only
// CapabilityScalar exists and every kernel constructor uses it
// unconditionally; neither the worker nor the brain consults Probe, and
// there is no per-call dispatch cost.
type Capability int

const (
	// CapabilityScalar is the allocation-free float32 production path used
	// by every kernel in this package.
	CapabilityScalar Capability = iota
)

// Probe reports the capability this process should bind kernels to.
// gonum's mat package is float64-only, so it cannot back the float32,
// allocation-free hot path the spec requires (see DESIGN.md, "gonum's actual
// role"); Probe therefore always resolves to CapabilityScalar in this
// environment. This mirrors the spec's "compile-time or init-time
// capability query" selection point even though only one path is ever
// actually eligible here.
func Probe() Capability {
	return CapabilityScalar
}

func sigmoid32(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

func sizeMismatch(reason string, want, got int) error {
	return &graph.SizeMismatchError{Reason: reason, Want: want, Got: got}
}

func rebindBorrow(dst *[]float32, weights []float32, offset, length int) error {
	if len(weights) < offset+length {
		return sizeMismatch("rebind weight slab shorter than kernel parameter length", offset+length, len(weights))
	}
	*dst = weights[offset : offset+length : offset+length]
	return nil
}
