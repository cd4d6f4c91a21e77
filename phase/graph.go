package phase

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is the static legal-successor table for the phase machine, realised
// as a directed graph so legality checks and diagram export share one
// source of truth.
//
// Edges: the forward chain planning -> ... -> completed; a universal escape
// edge from every non-terminal phase to aborted; and the single edge
// execution -> compromised, which only the machine's own risk rolls may
// take.
type Graph struct {
	g     *simple.DirectedGraph
	ids   map[Phase]int64
	names map[int64]Phase
}

// NewGraph builds the declared phase graph.
func NewGraph() *Graph {
	pg := &Graph{
		g:     simple.NewDirectedGraph(),
		ids:   make(map[Phase]int64),
		names: make(map[int64]Phase),
	}
	for _, p := range Phases() {
		n := pg.g.NewNode()
		pg.g.AddNode(phaseNode{id: n.ID(), phase: p})
		pg.ids[p] = n.ID()
		pg.names[n.ID()] = p
	}

	for i := 0; i+1 < len(forwardChain); i++ {
		pg.addEdge(forwardChain[i], forwardChain[i+1])
	}
	for _, p := range Phases() {
		if !p.Terminal() {
			pg.addEdge(p, Aborted)
		}
	}
	pg.addEdge(Execution, Compromised)
	return pg
}

func (pg *Graph) addEdge(from, to Phase) {
	pg.g.SetEdge(simple.Edge{
		F: phaseNode{id: pg.ids[from], phase: from},
		T: phaseNode{id: pg.ids[to], phase: to},
	})
}

// CanTransition reports whether from -> to is a declared edge.
func (pg *Graph) CanTransition(from, to Phase) bool {
	fromID, ok := pg.ids[from]
	if !ok {
		return false
	}
	toID, ok := pg.ids[to]
	if !ok {
		return false
	}
	return pg.g.HasEdgeFromTo(fromID, toID)
}

// Next returns the forward-chain successor of p, or an error when p has
// none (terminal phases).
func (pg *Graph) Next(p Phase) (Phase, error) {
	for i, candidate := range forwardChain {
		if candidate == p {
			if i+1 < len(forwardChain) {
				return forwardChain[i+1], nil
			}
			break
		}
	}
	return "", fmt.Errorf("phase %q has no forward successor", p)
}

// Successors lists every legal successor of p.
func (pg *Graph) Successors(p Phase) []Phase {
	id, ok := pg.ids[p]
	if !ok {
		return nil
	}
	var out []Phase
	it := pg.g.From(id)
	for it.Next() {
		out = append(out, pg.names[it.Node().ID()])
	}
	return out
}

// DOT renders the phase graph in Graphviz DOT format.
func (pg *Graph) DOT() ([]byte, error) {
	return dot.Marshal(pg.g, "phases", "", "  ")
}

// phaseNode carries the phase name into DOT output.
type phaseNode struct {
	id    int64
	phase Phase
}

func (n phaseNode) ID() int64 { return n.id }

func (n phaseNode) DOTID() string { return string(n.phase) }

func (n phaseNode) Attributes() []encoding.Attribute {
	if n.phase.Terminal() {
		return []encoding.Attribute{{Key: "shape", Value: "doublecircle"}}
	}
	return nil
}

var (
	_ graph.Node = phaseNode{}
	_ dot.Node   = phaseNode{}
)
