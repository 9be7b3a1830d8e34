package flowbot

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Program is the compiled, immutable form of a graph: the greeting, the
// entry node, and a table of every node with its outgoing routes resolved
// to target node ids. A Program carries no behavior of its own; a single
// generic interpreter in the runtime package executes any Program.
//
// Program size is linear in the graph: compilation serializes nodes, it
// does not expand per-node code.
type Program struct {
	Greeting string
	Entry    string
	Nodes    map[string]*ProgramNode
	Settings Settings
}

// ProgramNode is one entry in the program's node table.
type ProgramNode struct {
	ID     string
	Kind   Kind
	Config Config
	// Next maps output ports to target node ids.
	Next map[Port]string
}

// NextDefault returns the default successor, or "" when unconnected.
func (n *ProgramNode) NextDefault() string {
	return n.Next[PortDefault]
}

// Compile validates the graph and produces its Program.
//
// Compilation fails fast: a graph without exactly one start node, or with
// any edge referencing a missing node or a port its source does not
// expose, is rejected with a CompileError listing every violation.
// Unreachable nodes are legal; they are compiled in and logged.
func Compile(g *GraphStore) (*Program, error) {
	var violations []error

	var start *Node
	for _, n := range g.Nodes() {
		if n.Kind != KindStart {
			continue
		}
		if start != nil {
			violations = append(violations,
				fmt.Errorf("%w: %s and %s", ErrMultipleStartNodes, start.ID, n.ID))
			continue
		}
		start = n
	}
	if start == nil {
		violations = append(violations, ErrNoStartNode)
	}

	for _, e := range g.Edges() {
		from, err := g.Node(e.From)
		if err != nil {
			violations = append(violations,
				fmt.Errorf("%w: edge %s from missing node %s", ErrDanglingEdge, e.ID, e.From))
			continue
		}
		if _, err := g.Node(e.To); err != nil {
			violations = append(violations,
				fmt.Errorf("%w: edge %s to missing node %s", ErrDanglingEdge, e.ID, e.To))
			continue
		}
		if !HasPort(from, e.FromPort) {
			violations = append(violations,
				fmt.Errorf("%w: edge %s uses dead port %q on %s",
					ErrDanglingEdge, e.ID, e.FromPort, e.From))
		}
	}

	if len(violations) > 0 {
		return nil, &CompileError{Violations: violations}
	}

	prog := &Program{
		Nodes:    make(map[string]*ProgramNode, g.Len()),
		Settings: g.Settings(),
	}
	if cfg, ok := start.Config.(*StartConfig); ok {
		prog.Greeting = cfg.Greeting
	}

	next := make(map[string]map[Port]string)
	for _, e := range g.Edges() {
		if next[e.From] == nil {
			next[e.From] = make(map[Port]string)
		}
		next[e.From][e.FromPort] = e.To
	}
	prog.Entry = next[start.ID][PortDefault]

	reachable := reachableFrom(prog.Entry, next)
	for _, n := range g.Nodes() {
		if n.ID == start.ID {
			continue
		}
		if !reachable[n.ID] {
			slog.Warn("node is unreachable from entry", slog.String("node_id", n.ID))
		}
		prog.Nodes[n.ID] = &ProgramNode{
			ID:     n.ID,
			Kind:   n.Kind,
			Config: n.Config.Clone(),
			Next:   next[n.ID],
		}
	}
	return prog, nil
}

// reachableFrom walks the resolved routes from the entry node.
func reachableFrom(entry string, next map[string]map[Port]string) map[string]bool {
	seen := make(map[string]bool)
	stack := []string{entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		for _, target := range next[id] {
			stack = append(stack, target)
		}
	}
	return seen
}

// programRecord is the serialized program envelope. Node records reuse the
// snapshot block format with Connections.Outputs holding resolved target
// node ids rather than edge ids.
type programRecord struct {
	Greeting string                  `json:"greeting"`
	Entry    string                  `json:"entry,omitempty"`
	Blocks   map[string]*BlockRecord `json:"blocks"`
	Settings Settings                `json:"settings"`
}

// MarshalJSON implements json.Marshaler.
func (p *Program) MarshalJSON() ([]byte, error) {
	rec := programRecord{
		Greeting: p.Greeting,
		Entry:    p.Entry,
		Blocks:   make(map[string]*BlockRecord, len(p.Nodes)),
		Settings: p.Settings,
	}
	for id, pn := range p.Nodes {
		br := recordFromNode(&Node{
			ID:      pn.ID,
			Kind:    pn.Kind,
			Config:  pn.Config,
			Outputs: make(map[Port]string),
		})
		br.Connections = ConnectionSlots{}
		if len(pn.Next) > 0 {
			br.Connections.Outputs = make(map[Port]string, len(pn.Next))
			for port, target := range pn.Next {
				br.Connections.Outputs[port] = target
			}
		}
		rec.Blocks[id] = br
	}
	return json.Marshal(rec)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Program) UnmarshalJSON(data []byte) error {
	var rec programRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	p.Greeting = rec.Greeting
	p.Entry = rec.Entry
	p.Settings = rec.Settings
	p.Nodes = make(map[string]*ProgramNode, len(rec.Blocks))
	for id, br := range rec.Blocks {
		n, err := nodeFromRecord(br)
		if err != nil {
			return fmt.Errorf("block %s: %w", id, err)
		}
		if n.ID == "" {
			n.ID = id
		}
		pn := &ProgramNode{ID: n.ID, Kind: n.Kind, Config: n.Config}
		if len(br.Connections.Outputs) > 0 {
			pn.Next = make(map[Port]string, len(br.Connections.Outputs))
			for port, target := range br.Connections.Outputs {
				pn.Next[port] = target
			}
		}
		p.Nodes[n.ID] = pn
	}
	return nil
}

// LoadProgram parses a serialized program.
func LoadProgram(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	return &p, nil
}
