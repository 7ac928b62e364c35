package kjoin

import (
	"fmt"
	"github.com/olekukonko/tablewriter"
	"github.com/pickme-go/k-join/graph"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
)

// Describe renders the effective configuration as a table.
func (s *CoStream) Describe(w io.Writer) {
	c := s.config
	data := [][]string{
		{"kjoin.Name", c.Name},
		{"kjoin.AsyncProcessing", fmt.Sprint(c.AsyncProcessing)},
		{"kjoin.OutputBufferSize", fmt.Sprint(c.OutputBufferSize)},
		{``, ``},
	}

	if c.AsyncProcessing {
		data = append(data,
			[]string{"kjoin.WorkerPool.NumOfWorkers", fmt.Sprint(c.WorkerPool.NumOfWorkers)},
			[]string{"kjoin.WorkerPool.WorkerBufferSize", fmt.Sprint(c.WorkerPool.WorkerBufferSize)},
			[]string{"kjoin.WorkerPool.Order", c.WorkerPool.Order.String()},
		)
	} else {
		data = append(data, []string{"kjoin.LockStripes", fmt.Sprint(c.LockStripes)})
	}

	expiry := `never`
	if c.Store.Expiry > 0 {
		expiry = c.Store.Expiry.String()
	}

	data = append(data,
		[]string{``, ``},
		[]string{"kjoin.Store.Backend", string(c.Store.Backend)},
		[]string{"kjoin.Store.Expiry", expiry},
		[]string{"kjoin.Store.Http.Host", c.Store.Http.Host},
	)

	for _, name := range s.registry.List() {
		data = append(data, []string{"kjoin.Store", s.registry.Store(name).String()})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Config", "Value"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.AppendBulk(data)
	table.Render()
}

// Graph renders the join topology (primary and secondary sources feeding the
// joiner and its slot backend, then the given sinks) in graphviz dot format.
func (s *CoStream) Graph(primary, secondary string, sinks ...string) (string, error) {
	g, err := graph.NewGraph(s.config.Name)
	if err != nil {
		return ``, err
	}

	for _, src := range []string{primary, secondary} {
		if err := g.Source(src); err != nil {
			return ``, err
		}
	}

	backend := fmt.Sprintf(`%s (%s)`, s.config.Name, s.config.Store.Backend)
	if err := g.Joiner(s.config.Name+`-joiner`, primary, secondary, backend); err != nil {
		return ``, err
	}

	for _, sink := range sinks {
		if err := g.Sink(s.config.Name+`-joiner`, sink); err != nil {
			return ``, err
		}
	}

	return g.String(), nil
}

// MetricRegistry is the registry behind Stats. It can be shared with clients
// that record into a go-metrics registry, such as sarama.
func (s *CoStream) MetricRegistry() gometrics.Registry {
	return s.stats
}
