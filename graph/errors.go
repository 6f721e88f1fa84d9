package graph

import "fmt"

// InvalidError reports a violated compile-time invariant. NodeIDs names the
// offending node(s); it is empty for graph-level violations that do not
// pinpoint a single node (e.g. "no Input node").
type InvalidError struct {
	Reason  string
	NodeIDs []string
}

func (e *InvalidError) Error() string {
	if len(e.NodeIDs) == 0 {
		return fmt.Sprintf("graph invalid: %s", e.Reason)
	}
	return fmt.Sprintf("graph invalid: %s (nodes: %v)", e.Reason, e.NodeIDs)
}

func invalid(reason string, nodeIDs ...string) error {
	return &InvalidError{Reason: reason, NodeIDs: nodeIDs}
}

// SizeMismatchError reports a declared size that does not reconcile with its
// computed counterpart (a node inputSize, Split or Output size check, or,
// as raised by the kernel package, a weight slab too short for a kernel's
// parameters).
type SizeMismatchError struct {
	Reason string
	Want   int
	Got    int
	NodeID string
}

func (e *SizeMismatchError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("size mismatch: %s (want %d, got %d)", e.Reason, e.Want, e.Got)
	}
	return fmt.Sprintf("size mismatch: %s (want %d, got %d, node %s)", e.Reason, e.Want, e.Got, e.NodeID)
}

func sizeMismatch(reason string, want, got int) error {
	return &SizeMismatchError{Reason: reason, Want: want, Got: got}
}

func sizeMismatchNode(reason, nodeID string, want, got int) error {
	return &SizeMismatchError{Reason: reason, Want: want, Got: got, NodeID: nodeID}
}
