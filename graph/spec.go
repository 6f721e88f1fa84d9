// Package graph compiles a computation-graph specification (a DAG of typed
// nodes such as Input, Dense, MLP, GRU, LSTM, RRU, Concat, Split) into an
// immutable, topologically-ordered program that the brain package can
// execute with zero per-pass allocation.
package graph

// NodeType discriminates the supported node kinds. A tagged-variant
// representation is used throughout (Node, CompiledNode) rather than an
// interface-per-node-kind hierarchy, so dispatch stays a type switch instead
// of a virtual call on the hot path.
type NodeType string

const (
	NodeInput  NodeType = "input"
	NodeDense  NodeType = "dense"
	NodeMLP    NodeType = "mlp"
	NodeGRU    NodeType = "gru"
	NodeLSTM   NodeType = "lstm"
	NodeRRU    NodeType = "rru"
	NodeConcat NodeType = "concat"
	NodeSplit  NodeType = "split"
)

// Node is one declared vertex of a graph specification. Only the fields
// relevant to Type are meaningful; Compile validates that the required
// fields for each Type are present and positive.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`

	// Input, Dense, MLP, GRU, LSTM, RRU
	InputSize  int `json:"inputSize,omitempty" yaml:"inputSize,omitempty"`
	OutputSize int `json:"outputSize,omitempty" yaml:"outputSize,omitempty"`

	// MLP only: optional ordered hidden layer sizes between InputSize and
	// OutputSize.
	HiddenSizes []int `json:"hiddenSizes,omitempty" yaml:"hiddenSizes,omitempty"`

	// GRU, LSTM, RRU
	HiddenSize int `json:"hiddenSize,omitempty" yaml:"hiddenSize,omitempty"`

	// Split only: ordered output port sizes. Input size is their sum.
	OutputSizes []int `json:"outputSizes,omitempty" yaml:"outputSizes,omitempty"`
}

// Edge connects an upstream node's output port to a downstream node's input
// port. Ports default to 0 when absent.
type Edge struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	FromPort *int   `json:"fromPort,omitempty" yaml:"fromPort,omitempty"`
	ToPort   *int   `json:"toPort,omitempty" yaml:"toPort,omitempty"`
}

func (e Edge) fromPort() int {
	if e.FromPort == nil {
		return 0
	}
	return *e.FromPort
}

func (e Edge) toPort() (port int, present bool) {
	if e.ToPort == nil {
		return 0, false
	}
	return *e.ToPort, true
}

// OutputRef names one output port contributing to the graph's final output
// buffer. Referenced ports are concatenated in declaration order.
type OutputRef struct {
	NodeID string `json:"nodeId" yaml:"nodeId"`
	Port   *int   `json:"port,omitempty" yaml:"port,omitempty"`
}

func (o OutputRef) port() int {
	if o.Port == nil {
		return 0
	}
	return *o.Port
}

// Spec is the full, user-provided graph specification: an ordered list of
// nodes, a list of directed edges, a list of output references, and the
// declared total output size.
type Spec struct {
	Type       string      `json:"type" yaml:"type"`
	Nodes      []Node      `json:"nodes" yaml:"nodes"`
	Edges      []Edge      `json:"edges" yaml:"edges"`
	Outputs    []OutputRef `json:"outputs" yaml:"outputs"`
	OutputSize int         `json:"outputSize" yaml:"outputSize"`
}
