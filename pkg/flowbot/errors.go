package flowbot

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by graph operations and compilation.
// Use errors.Is to check for them.
var (
	// ErrUnknownKind indicates a node kind outside the catalog.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrNodeNotFound indicates an operation referencing a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates an operation referencing a missing edge.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrUnknownPort indicates a connect on a port the source node does
	// not currently expose.
	ErrUnknownPort = errors.New("unknown output port")

	// ErrPortOccupied indicates a connect on a port that already has an
	// outbound edge.
	ErrPortOccupied = errors.New("output port already connected")

	// ErrInputOccupied indicates a connect to a node that already has an
	// inbound edge.
	ErrInputOccupied = errors.New("node input already connected")

	// ErrSelfLoop indicates a connect from a node to itself.
	ErrSelfLoop = errors.New("self-loop not allowed")

	// ErrNoStartNode indicates compilation of a graph without a start node.
	ErrNoStartNode = errors.New("graph has no start node")

	// ErrMultipleStartNodes indicates compilation of a graph with more
	// than one start node.
	ErrMultipleStartNodes = errors.New("graph has multiple start nodes")

	// ErrDanglingEdge indicates an edge referencing a missing node or a
	// port its source node does not expose.
	ErrDanglingEdge = errors.New("edge references missing node or port")

	// ErrBadSnapshot indicates snapshot data that cannot be loaded.
	ErrBadSnapshot = errors.New("malformed snapshot")
)

// NodeError wraps an error with the node and operation it occurred in.
type NodeError struct {
	NodeID string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// CompileError aggregates the violations found during compilation.
type CompileError struct {
	Violations []error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile failed with %d violation(s): %v",
		len(e.Violations), errors.Join(e.Violations...))
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *CompileError) Unwrap() []error {
	return e.Violations
}
