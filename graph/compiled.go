package graph

// ResolvedInput is one upstream data source feeding a compiled node, already
// ordered the way the runtime must read it (by toPort when declared, else by
// source node id).
type ResolvedInput struct {
	FromID   string
	FromPort int
	Size     int
}

// CompiledNode is one entry of a Compiled graph's topologically ordered
// node list. All sizes are resolved; ParamOffset/ParamLength locate this
// node's slice of a per-brain weight slab.
type CompiledNode struct {
	ID   string
	Type NodeType

	InputSize   int   // resolved total input width (0 for Input)
	OutputSize  int   // resolved single-port output width
	HiddenSize  int   // GRU/LSTM/RRU only
	HiddenSizes []int // MLP only: full chain [inputSize, hidden..., outputSize]
	OutputSizes []int // Split only: ordered port sizes

	ParamOffset int
	ParamLength int

	Inputs []ResolvedInput
}

// OutputPorts reports how many distinct output ports this node type exposes.
// Every node type has exactly one output port except Split, which has one
// per declared OutputSizes entry.
func (n CompiledNode) OutputPorts() int {
	if n.Type == NodeSplit {
		return len(n.OutputSizes)
	}
	return 1
}

// PortSize returns the width of output port p. p is not range-checked: an
// out-of-range port panics for Split and returns OutputSize for every other
// node type.
func (n CompiledNode) PortSize(p int) int {
	if n.Type == NodeSplit {
		return n.OutputSizes[p]
	}
	return n.OutputSize
}

// ResolvedOutput is one entry of a Compiled graph's output reference list,
// with the port defaulted and validated.
type ResolvedOutput struct {
	NodeID string
	Port   int
}

// Compiled is the immutable output of Compile: a topologically ordered
// program, parameter layout, output wiring, and a stable content-addressed
// key. It may be shared by reference across goroutines/workers.
type Compiled struct {
	Nodes     []CompiledNode
	nodeIndex map[string]int

	TotalParams int
	Outputs     []ResolvedOutput
	OutputSize  int

	Key string
}

// NodeByID returns the compiled node for id and whether it was found.
func (c *Compiled) NodeByID(id string) (CompiledNode, bool) {
	idx, ok := c.nodeIndex[id]
	if !ok {
		return CompiledNode{}, false
	}
	return c.Nodes[idx], true
}

// IndexOf returns the topological position of node id.
func (c *Compiled) IndexOf(id string) (int, bool) {
	idx, ok := c.nodeIndex[id]
	return idx, ok
}
