package graph

import (
	"fmt"
	"github.com/awalterschulze/gographviz"
)

// Graph renders a co-join pipeline (two sources, the joiner with its slot store
// and the sinks) as a graphviz digraph.
type Graph struct {
	parent   string
	vizGraph *gographviz.Graph
}

func NewGraph(name string) (*Graph, error) {
	parent := `root`
	g := gographviz.NewGraph()
	if err := g.SetName(parent); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}

	if err := g.AddAttr(parent, `rankdir`, `LR`); err != nil {
		return nil, err
	}

	if err := g.AddAttr(parent, `label`, quote(name)); err != nil {
		return nil, err
	}

	return &Graph{
		parent:   parent,
		vizGraph: g,
	}, nil
}

func quote(s string) string {
	return fmt.Sprintf(`"%s"`, s)
}

func (g *Graph) node(name string, attrs map[string]string) error {
	attrs[`label`] = quote(name)
	return g.vizGraph.AddNode(g.parent, quote(name), attrs)
}

func (g *Graph) edge(from, to string) error {
	return g.vizGraph.AddEdge(quote(from), quote(to), true, nil)
}

func (g *Graph) Source(name string) error {
	return g.node(name, map[string]string{
		`color`:     `black`,
		`fillcolor`: `deepskyblue1`,
		`style`:     `filled`,
		`shape`:     `oval`,
	})
}

// Joiner adds the joiner fed by both sources, and its slot store.
func (g *Graph) Joiner(name, primary, secondary, store string) error {
	if err := g.node(name, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `slateblue4`,
		`style`:     `filled`,
	}); err != nil {
		return err
	}

	if err := g.node(store, map[string]string{
		`fillcolor`: `grey95`,
		`style`:     `filled`,
		`shape`:     `cylinder`,
	}); err != nil {
		return err
	}

	for _, from := range []string{primary, secondary} {
		if err := g.edge(from, name); err != nil {
			return err
		}
	}

	return g.vizGraph.AddEdge(quote(name), quote(store), false, map[string]string{`style`: `dashed`})
}

func (g *Graph) Sink(parent, name string) error {
	if err := g.node(name, map[string]string{
		`fillcolor`: `orange`,
		`style`:     `filled`,
		`shape`:     `box`,
	}); err != nil {
		return err
	}

	return g.edge(parent, name)
}

func (g *Graph) String() string {
	return g.vizGraph.String()
}
