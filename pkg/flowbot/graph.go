package flowbot

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Settings holds bot-level metadata carried alongside the graph.
type Settings struct {
	BotName  string `json:"botName"`
	BotToken string `json:"botToken"`
}

// GraphStore is the mutable editing model of a flow: nodes, edges, the id
// counter and bot settings. Construct independent stores with NewGraphStore;
// there is no shared global state.
//
// A store is not safe for concurrent mutation. Editing is single-threaded;
// concurrency enters the system only at execution time.
//
// Every operation either succeeds or rejects with an error and leaves the
// store unchanged. Rejection is a normal outcome, not a panic.
type GraphStore struct {
	nodes    map[string]*Node
	edges    []*Edge
	counter  int
	settings Settings
}

// NewGraphStore creates an empty store.
func NewGraphStore() *GraphStore {
	return &GraphStore{nodes: make(map[string]*Node)}
}

// Settings returns the bot-level settings.
func (g *GraphStore) Settings() Settings {
	return g.settings
}

// SetSettings replaces the bot-level settings.
func (g *GraphStore) SetSettings(s Settings) {
	g.settings = s
}

// Counter returns the current id counter value.
func (g *GraphStore) Counter() int {
	return g.counter
}

// CreateNode adds a node of the given kind at canvas position (x, y) with
// the kind's default config. Node ids are minted from a monotonic counter
// and are never reused, even after deletion.
func (g *GraphStore) CreateNode(kind Kind, x, y float64) (*Node, error) {
	cfg, err := DefaultConfig(kind)
	if err != nil {
		return nil, err
	}
	g.counter++
	n := &Node{
		ID:      fmt.Sprintf("block_%d", g.counter),
		Kind:    kind,
		X:       x,
		Y:       y,
		Config:  cfg,
		Outputs: make(map[Port]string),
	}
	g.nodes[n.ID] = n
	return n, nil
}

// Node returns the node with the given id.
func (g *GraphStore) Node(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns all nodes ordered by id for deterministic iteration.
func (g *GraphStore) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of nodes.
func (g *GraphStore) Len() int {
	return len(g.nodes)
}

// Edges returns the edge list in insertion order.
func (g *GraphStore) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgeByID returns the edge with the given id.
func (g *GraphStore) EdgeByID(id string) (*Edge, error) {
	for _, e := range g.edges {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
}

// SetConfig replaces a node's config and normalizes the node: output edges
// on ports the new config no longer exposes are disconnected. The config's
// kind must match the node's kind.
func (g *GraphStore) SetConfig(id string, cfg Config) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if cfg.Kind() != n.Kind {
		return fmt.Errorf("%w: config kind %q does not match node kind %q",
			ErrUnknownKind, cfg.Kind(), n.Kind)
	}
	n.Config = cfg
	g.normalizeNode(n)
	return nil
}

// UpdateConfig applies mutate to a copy of the node's config, then installs
// it via SetConfig. Convenient for single-field edits.
func (g *GraphStore) UpdateConfig(id string, mutate func(Config)) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	cfg := n.Config.Clone()
	mutate(cfg)
	return g.SetConfig(id, cfg)
}

// Move updates a node's canvas position.
func (g *GraphStore) Move(id string, x, y float64) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	n.X, n.Y = x, y
	return nil
}

// Connect creates an edge from an output port to another node's input.
// The connection is rejected when either node is missing, the port is not
// live on the source, the port already has an edge, the target already has
// an inbound edge, or source and target are the same node.
func (g *GraphStore) Connect(fromID string, port Port, toID string) (*Edge, error) {
	from, err := g.Node(fromID)
	if err != nil {
		return nil, err
	}
	to, err := g.Node(toID)
	if err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: %s", ErrSelfLoop, fromID)
	}
	if !HasPort(from, port) {
		return nil, fmt.Errorf("%w: %s has no port %q", ErrUnknownPort, fromID, port)
	}
	if _, occupied := from.Outputs[port]; occupied {
		return nil, fmt.Errorf("%w: %s port %q", ErrPortOccupied, fromID, port)
	}
	if to.Input != "" {
		return nil, fmt.Errorf("%w: %s", ErrInputOccupied, toID)
	}

	e := &Edge{
		ID:       uuid.New().String(),
		From:     fromID,
		FromPort: port,
		To:       toID,
	}
	g.edges = append(g.edges, e)
	from.Outputs[port] = e.ID
	to.Input = e.ID
	return e, nil
}

// Disconnect removes an edge and clears the connection slots on both
// endpoints.
func (g *GraphStore) Disconnect(edgeID string) error {
	for i, e := range g.edges {
		if e.ID != edgeID {
			continue
		}
		g.edges = append(g.edges[:i], g.edges[i+1:]...)
		if from, ok := g.nodes[e.From]; ok && from.Outputs[e.FromPort] == e.ID {
			delete(from.Outputs, e.FromPort)
		}
		if to, ok := g.nodes[e.To]; ok && to.Input == e.ID {
			to.Input = ""
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
}

// DeleteNode removes a node and every incident edge. Surviving peers get
// their connection slots cleared. Deleting a start node is allowed; the
// graph only becomes uncompilable.
func (g *GraphStore) DeleteNode(id string) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for _, e := range g.incidentEdges(id) {
		// Disconnect cannot fail here: the edge was just enumerated.
		_ = g.Disconnect(e.ID)
	}
	delete(g.nodes, id)
	return nil
}

// incidentEdges returns every edge touching the node.
func (g *GraphStore) incidentEdges(id string) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.From == id || e.To == id {
			out = append(out, e)
		}
	}
	return out
}
