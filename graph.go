package agent

import (
	"context"
	"fmt"
)

// NodeFunc executes one graph step against the state. A returned error is a
// driver failure; step-level problems belong in State.Error.
type NodeFunc func(ctx context.Context, s *State) error

// Router chooses the successor of a node from the state.
type Router func(s *State) StepName

// Node is a named step of the graph with either a fixed successor or a
// router. Exactly one of Next and Route is set.
type Node struct {
	Name  StepName
	Run   NodeFunc
	Next  StepName
	Route Router
}

// Graph is a validated set of nodes with a single entry point.
type Graph struct {
	entry StepName
	nodes map[StepName]*Node
}

// NewGraph validates and returns a graph.
func NewGraph(entry StepName, nodes ...*Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph must have at least one node")
	}
	g := &Graph{entry: entry, nodes: make(map[StepName]*Node, len(nodes))}
	for _, node := range nodes {
		if node == nil {
			return nil, fmt.Errorf("graph node is nil")
		}
		if node.Name == "" || node.Name == StepEnd {
			return nil, fmt.Errorf("invalid node name %q", node.Name)
		}
		if _, exists := g.nodes[node.Name]; exists {
			return nil, fmt.Errorf("duplicate node name %q", node.Name)
		}
		if node.Run == nil {
			return nil, fmt.Errorf("node %q has no run function", node.Name)
		}
		if (node.Next == "") == (node.Route == nil) {
			return nil, fmt.Errorf("node %q must have exactly one of a fixed edge or a router", node.Name)
		}
		g.nodes[node.Name] = node
	}
	if _, ok := g.nodes[entry]; !ok {
		return nil, fmt.Errorf("entry node %q not found", entry)
	}
	for _, node := range nodes {
		if node.Next != "" && node.Next != StepEnd {
			if _, ok := g.nodes[node.Next]; !ok {
				return nil, fmt.Errorf("node %q has edge to unknown node %q", node.Name, node.Next)
			}
		}
	}
	return g, nil
}

// Entry returns the entry node name.
func (g *Graph) Entry() StepName {
	return g.entry
}

// Node returns the node with the given name.
func (g *Graph) Node(name StepName) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// Next returns the successor of a node for the given state.
func (g *Graph) Next(from StepName, s *State) (StepName, error) {
	node, ok := g.nodes[from]
	if !ok {
		return "", fmt.Errorf("unknown node %q", from)
	}
	next := node.Next
	if node.Route != nil {
		next = node.Route(s)
	}
	if next == StepEnd {
		return next, nil
	}
	if _, ok := g.nodes[next]; !ok {
		return "", fmt.Errorf("node %q routed to unknown node %q", from, next)
	}
	return next, nil
}
