// Package flowbot is the core of a visual chatbot flow editor: a node
// catalog, an editable graph model, a snapshot serializer and a compiler.
//
// A flow is a directed graph of typed nodes. Each node exposes a set of
// named output ports derived purely from its kind and configuration; edges
// connect an output port to another node's input. The model enforces two
// structural invariants at all times: a node has at most one inbound edge,
// and a port has at most one outbound edge.
//
// Editing happens through a GraphStore:
//
//	g := flowbot.NewGraphStore()
//	start, _ := g.CreateNode(flowbot.KindStart, 40, 40)
//	ask, _ := g.CreateNode(flowbot.KindQuestion, 240, 40)
//	g.Connect(start.ID, flowbot.PortDefault, ask.ID)
//
// Stores serialize to snapshots ({blocks, connections, blockCounter}) and
// load back losslessly; loading repairs edges that reference missing nodes
// or dead ports.
//
// Compile turns a store into an immutable Program: a data table of nodes
// with resolved routes, executed by the generic interpreter in the runtime
// package. EmitSource writes the same table embedded in a standalone Go
// program.
package flowbot
