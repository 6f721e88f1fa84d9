package graph

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Key computes spec's canonical content-addressed fingerprint: edges are
// sorted by (fromId, fromPort, toId, toPort) with absent ports normalized to
// 0, outputs are sorted by (nodeId, port), and the node list is serialized
// in declaration order (node declaration order is part of topology via
// Compile's tie-break rule, so it is significant and kept as-is). The
// result is invariant under any reordering of spec.Edges/spec.Outputs that
// does not change the resolved topology, mirroring the fnv-derived
// deterministic seeds the teacher uses for per-subsystem RNGs.
func Key(spec Spec) string {
	var b strings.Builder

	nodes := append([]Node(nil), spec.Nodes...)
	b.WriteString("nodes:")
	for _, n := range nodes {
		fmt.Fprintf(&b, "|%s,%s,in=%d,out=%d,hid=%d,hidden=%v,splits=%v",
			n.ID, n.Type, n.InputSize, n.OutputSize, n.HiddenSize, n.HiddenSizes, n.OutputSizes)
	}

	edges := append([]Edge(nil), spec.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		a, c := edges[i], edges[j]
		if a.From != c.From {
			return a.From < c.From
		}
		if a.fromPort() != c.fromPort() {
			return a.fromPort() < c.fromPort()
		}
		if a.To != c.To {
			return a.To < c.To
		}
		ap, _ := a.toPort()
		cp, _ := c.toPort()
		return ap < cp
	})
	b.WriteString(";edges:")
	for _, e := range edges {
		toPort, present := e.toPort()
		fmt.Fprintf(&b, "|%s.%d->%s.%d(%v)", e.From, e.fromPort(), e.To, toPort, present)
	}

	outputs := append([]OutputRef(nil), spec.Outputs...)
	sort.Slice(outputs, func(i, j int) bool {
		if outputs[i].NodeID != outputs[j].NodeID {
			return outputs[i].NodeID < outputs[j].NodeID
		}
		return outputs[i].port() < outputs[j].port()
	})
	b.WriteString(";outputs:")
	for _, o := range outputs {
		fmt.Fprintf(&b, "|%s.%d", o.NodeID, o.port())
	}

	fmt.Fprintf(&b, ";outputSize=%d", spec.OutputSize)

	h := fnv.New64a()
	_, _ = h.Write([]byte(b.String()))
	return fmt.Sprintf("%016x", h.Sum64())
}
