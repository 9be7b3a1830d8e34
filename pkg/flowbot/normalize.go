package flowbot

// normalizeNode reconciles a node's output edges with its live port set.
// Edges on ports the config no longer exposes are disconnected, with full
// cleanup on both endpoints. Edges on still-live ports are untouched.
// Normalization never deletes nodes and never invents edges.
func (g *GraphStore) normalizeNode(n *Node) {
	live := make(map[Port]bool)
	for _, p := range Ports(n) {
		live[p] = true
	}
	for port, edgeID := range n.Outputs {
		if live[port] {
			continue
		}
		_ = g.Disconnect(edgeID)
	}
}

// Normalize reconciles one node after an external config change.
func (g *GraphStore) Normalize(id string) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	g.normalizeNode(n)
	return nil
}

// NormalizeAll repairs the whole store after a bulk load: edges referencing
// missing nodes or ports their source no longer exposes are dropped, and
// the mirrored connection slots are rebuilt from the surviving edge list.
func (g *GraphStore) NormalizeAll() {
	kept := g.edges[:0]
	for _, e := range g.edges {
		from, okFrom := g.nodes[e.From]
		_, okTo := g.nodes[e.To]
		if !okFrom || !okTo || e.From == e.To || !HasPort(from, e.FromPort) {
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept

	// Rebuild mirrors from scratch. First edge wins on conflicts, matching
	// the single-slot invariants; losers are dropped below.
	for _, n := range g.nodes {
		n.Input = ""
		n.Outputs = make(map[Port]string)
	}
	kept = g.edges[:0]
	for _, e := range g.edges {
		from := g.nodes[e.From]
		to := g.nodes[e.To]
		if _, taken := from.Outputs[e.FromPort]; taken {
			continue
		}
		if to.Input != "" {
			continue
		}
		from.Outputs[e.FromPort] = e.ID
		to.Input = e.ID
		kept = append(kept, e)
	}
	g.edges = kept
}
