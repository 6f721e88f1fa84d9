package graph

import "sort"

// Compile validates spec against every invariant in spec.md §3 and produces
// an immutable Compiled graph: a topological node order (Kahn's algorithm,
// ties broken by declaration order for a stable output), parameter offsets
// assigned by accumulating ParamLength in that order, and a canonical Key.
//
// Compile is total: the first violated invariant is reported and no partial
// graph escapes. Every InvalidError/SizeMismatchError about a specific node
// names the offending node id(s); graph-level violations (an empty id, a
// wrong number of Input nodes, a declared outputSize mismatch) carry none.
func Compile(spec Spec) (*Compiled, error) {
	if err := checkUniqueIDs(spec); err != nil {
		return nil, err
	}
	byID := make(map[string]Node, len(spec.Nodes))
	for _, n := range spec.Nodes {
		byID[n.ID] = n
	}

	if err := checkEdgeEndpoints(spec, byID); err != nil {
		return nil, err
	}

	if _, err := checkSingleInput(spec, byID); err != nil {
		return nil, err
	}

	incoming := groupIncoming(spec.Edges)

	if err := checkSingleInputArity(spec, byID, incoming); err != nil {
		return nil, err
	}

	if err := checkNodeSizesPositive(spec.Nodes); err != nil {
		return nil, err
	}

	topo, err := topoSort(spec, incoming)
	if err != nil {
		return nil, err
	}

	if err := checkConcatPorts(spec, byID, incoming); err != nil {
		return nil, err
	}

	// Resolve everything in topological order so upstream output port sizes
	// are always known before a downstream node needs them.
	resolvedPorts := make(map[string][]int, len(spec.Nodes))

	nodes := make([]CompiledNode, 0, len(spec.Nodes))
	for _, id := range topo {
		n := byID[id]
		edges := incoming[id]

		if err := checkFromPorts(edges, resolvedPorts); err != nil {
			return nil, err
		}

		inputs, inSize := resolveInputs(edges, resolvedPorts)

		cn := CompiledNode{ID: id, Type: n.Type, Inputs: inputs}

		switch n.Type {
		case NodeInput:
			cn.OutputSize = n.OutputSize
			resolvedPorts[id] = []int{n.OutputSize}
		case NodeDense:
			if n.InputSize != inSize {
				return nil, sizeMismatchNode("dense inputSize does not match upstream output size", id, n.InputSize, inSize)
			}
			cn.InputSize = n.InputSize
			cn.OutputSize = n.OutputSize
			resolvedPorts[id] = []int{n.OutputSize}
		case NodeMLP:
			if n.InputSize != inSize {
				return nil, sizeMismatchNode("mlp inputSize does not match upstream output size", id, n.InputSize, inSize)
			}
			cn.InputSize = n.InputSize
			cn.OutputSize = n.OutputSize
			cn.HiddenSizes = mlpChain(n)
			resolvedPorts[id] = []int{n.OutputSize}
		case NodeGRU, NodeLSTM, NodeRRU:
			if n.InputSize != inSize {
				return nil, sizeMismatchNode("recurrent node inputSize does not match upstream output size", id, n.InputSize, inSize)
			}
			cn.InputSize = n.InputSize
			cn.HiddenSize = n.HiddenSize
			cn.OutputSize = n.HiddenSize
			resolvedPorts[id] = []int{n.HiddenSize}
		case NodeConcat:
			cn.InputSize = inSize
			cn.OutputSize = inSize
			resolvedPorts[id] = []int{inSize}
		case NodeSplit:
			sum := 0
			for _, s := range n.OutputSizes {
				sum += s
			}
			if sum != inSize {
				return nil, sizeMismatchNode("split outputSizes do not sum to upstream output size", id, sum, inSize)
			}
			cn.InputSize = inSize
			cn.OutputSizes = append([]int(nil), n.OutputSizes...)
			resolvedPorts[id] = append([]int(nil), n.OutputSizes...)
		}

		cn.ParamLength = paramLength(n)
		nodes = append(nodes, cn)
	}

	offset := 0
	nodeIndex := make(map[string]int, len(nodes))
	for i := range nodes {
		nodes[i].ParamOffset = offset
		offset += nodes[i].ParamLength
		nodeIndex[nodes[i].ID] = i
	}

	outputs, outSize, err := resolveOutputs(spec, byID, resolvedPorts)
	if err != nil {
		return nil, err
	}
	if outSize != spec.OutputSize {
		return nil, sizeMismatch("declared outputSize does not match sum of referenced output ports", spec.OutputSize, outSize)
	}

	c := &Compiled{
		Nodes:       nodes,
		nodeIndex:   nodeIndex,
		TotalParams: offset,
		Outputs:     outputs,
		OutputSize:  outSize,
	}
	c.Key = Key(spec)
	return c, nil
}

func checkUniqueIDs(spec Spec) error {
	seen := make(map[string]bool, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if n.ID == "" {
			return invalid("node id must be non-empty")
		}
		if seen[n.ID] {
			return invalid("duplicate node id", n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

func checkEdgeEndpoints(spec Spec, byID map[string]Node) error {
	for _, e := range spec.Edges {
		if _, ok := byID[e.From]; !ok {
			return invalid("edge references unknown node", e.From)
		}
		if _, ok := byID[e.To]; !ok {
			return invalid("edge references unknown node", e.To)
		}
	}
	return nil
}

func checkSingleInput(spec Spec, byID map[string]Node) (string, error) {
	var inputID string
	count := 0
	for _, n := range spec.Nodes {
		if n.Type == NodeInput {
			inputID = n.ID
			count++
		}
	}
	if count != 1 {
		return "", invalid("graph must have exactly one Input node")
	}
	for _, e := range spec.Edges {
		if e.To == inputID {
			return "", invalid("Input node must have no incoming edges", inputID)
		}
	}
	return inputID, nil
}

func groupIncoming(edges []Edge) map[string][]Edge {
	m := make(map[string][]Edge)
	for _, e := range edges {
		m[e.To] = append(m[e.To], e)
	}
	return m
}

func checkSingleInputArity(spec Spec, byID map[string]Node, incoming map[string][]Edge) error {
	for _, n := range spec.Nodes {
		switch n.Type {
		case NodeDense, NodeMLP, NodeGRU, NodeLSTM, NodeRRU, NodeSplit:
			if len(incoming[n.ID]) != 1 {
				return invalid("node requires exactly one incoming edge", n.ID)
			}
		}
	}
	return nil
}

func checkNodeSizesPositive(nodes []Node) error {
	pos := func(id string, vals ...int) error {
		for _, v := range vals {
			if v <= 0 {
				return invalid("all sizes must be positive integers", id)
			}
		}
		return nil
	}
	for _, n := range nodes {
		switch n.Type {
		case NodeInput:
			if err := pos(n.ID, n.OutputSize); err != nil {
				return err
			}
		case NodeDense:
			if err := pos(n.ID, n.InputSize, n.OutputSize); err != nil {
				return err
			}
		case NodeMLP:
			if err := pos(n.ID, n.InputSize, n.OutputSize); err != nil {
				return err
			}
			if err := pos(n.ID, n.HiddenSizes...); err != nil {
				return err
			}
		case NodeGRU, NodeLSTM, NodeRRU:
			if err := pos(n.ID, n.InputSize, n.HiddenSize); err != nil {
				return err
			}
		case NodeSplit:
			if len(n.OutputSizes) == 0 {
				return invalid("split requires at least one outputSizes entry", n.ID)
			}
			if err := pos(n.ID, n.OutputSizes...); err != nil {
				return err
			}
		case NodeConcat:
		default:
			return invalid("unknown node type", n.ID)
		}
	}
	return nil
}

// topoSort computes a Kahn's-algorithm order, scanning ready nodes in
// declaration order at each step so the result is stable under any edge
// reordering that does not change topology. Node declaration order breaks
// ties, so reordering nodes can change the result.
func topoSort(spec Spec, incoming map[string][]Edge) ([]string, error) {
	indegree := make(map[string]int, len(spec.Nodes))
	outgoing := make(map[string][]string, len(spec.Nodes))
	for _, n := range spec.Nodes {
		indegree[n.ID] = len(incoming[n.ID])
	}
	for _, e := range spec.Edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}

	declOrder := make([]string, len(spec.Nodes))
	for i, n := range spec.Nodes {
		declOrder[i] = n.ID
	}

	// Kahn's algorithm, but at every step we scan candidates in declaration
	// order rather than queue (insertion) order: this is what makes the
	// result stable under any edge reordering that does not change
	// topology, independent of the order outgoing[] edges happen to list
	// downstream nodes in.
	visited := make(map[string]bool, len(spec.Nodes))
	topo := make([]string, 0, len(spec.Nodes))
	for len(topo) < len(spec.Nodes) {
		picked := ""
		for _, id := range declOrder {
			if !visited[id] && indegree[id] == 0 {
				picked = id
				break
			}
		}
		if picked == "" {
			break
		}
		visited[picked] = true
		topo = append(topo, picked)
		for _, to := range outgoing[picked] {
			indegree[to]--
		}
	}

	if len(topo) != len(spec.Nodes) {
		var cyclic []string
		for _, n := range spec.Nodes {
			if !visited[n.ID] {
				cyclic = append(cyclic, n.ID)
			}
		}
		return nil, invalid("graph contains a cycle", cyclic...)
	}
	return topo, nil
}

func checkConcatPorts(spec Spec, byID map[string]Node, incoming map[string][]Edge) error {
	for _, n := range spec.Nodes {
		if n.Type != NodeConcat {
			continue
		}
		edges := incoming[n.ID]
		present := 0
		for _, e := range edges {
			if _, ok := e.toPort(); ok {
				present++
			}
		}
		if present != 0 && present != len(edges) {
			return invalid("concat toPort must be present on all incoming edges or none", n.ID)
		}
		if present == len(edges) && present > 0 {
			seen := make(map[int]bool, len(edges))
			max := -1
			for _, e := range edges {
				p, _ := e.toPort()
				if seen[p] {
					return invalid("concat toPort values must be unique", n.ID)
				}
				seen[p] = true
				if p > max {
					max = p
				}
			}
			for p := 0; p <= max; p++ {
				if !seen[p] {
					return invalid("concat toPort values must be contiguous from 0", n.ID)
				}
			}
		}
	}
	return nil
}

// checkFromPorts validates invariant 7: fromPort must be within the source
// node's declared output port count. Requires the source already resolved
// (guaranteed by processing in topological order).
func checkFromPorts(edges []Edge, resolvedPorts map[string][]int) error {
	for _, e := range edges {
		srcPorts, ok := resolvedPorts[e.From]
		if !ok {
			// Topological order guarantees every source is resolved before
			// any of its consumers; this only fires if topoSort let a cycle
			// through, which it does not.
			return invalid("edge source not yet resolved", e.From)
		}
		fp := e.fromPort()
		if fp < 0 || fp >= len(srcPorts) {
			return invalid("fromPort out of range for source node", e.From)
		}
	}
	return nil
}

// resolveInputs orders a node's incoming edges by toPort (when declared) or
// by fromId lexicographic order (when absent), and reports the total
// resolved input width (the sum across all incoming ports). Each entry's
// Size is read from resolvedPorts, which already holds every source of this
// node (guaranteed, since we run in topological order).
func resolveInputs(edges []Edge, resolvedPorts map[string][]int) ([]ResolvedInput, int) {
	if len(edges) == 0 {
		return nil, 0
	}
	anyToPort := false
	for _, e := range edges {
		if _, ok := e.toPort(); ok {
			anyToPort = true
			break
		}
	}
	ordered := append([]Edge(nil), edges...)
	if anyToPort {
		sort.Slice(ordered, func(i, j int) bool {
			pi, _ := ordered[i].toPort()
			pj, _ := ordered[j].toPort()
			return pi < pj
		})
	} else {
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].From < ordered[j].From
		})
	}
	inputs := make([]ResolvedInput, len(ordered))
	total := 0
	for i, e := range ordered {
		fp := e.fromPort()
		size := resolvedPorts[e.From][fp]
		inputs[i] = ResolvedInput{FromID: e.From, FromPort: fp, Size: size}
		total += size
	}
	return inputs, total
}

func resolveOutputs(spec Spec, byID map[string]Node, resolvedPorts map[string][]int) ([]ResolvedOutput, int, error) {
	outputs := make([]ResolvedOutput, len(spec.Outputs))
	total := 0
	for i, o := range spec.Outputs {
		if _, ok := byID[o.NodeID]; !ok {
			return nil, 0, invalid("output references unknown node", o.NodeID)
		}
		ports, ok := resolvedPorts[o.NodeID]
		if !ok {
			return nil, 0, invalid("output node not resolved", o.NodeID)
		}
		p := o.port()
		if p < 0 || p >= len(ports) {
			return nil, 0, invalid("output port out of range", o.NodeID)
		}
		outputs[i] = ResolvedOutput{NodeID: o.NodeID, Port: p}
		total += ports[p]
	}
	return outputs, total, nil
}
