package kjoin

import (
	"context"
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/join"
	"golang.org/x/sync/errgroup"
	"io"
)

// Source yields the events of one side in order. Next returns io.EOF once the
// source is exhausted.
type Source interface {
	Next(ctx context.Context) (key, value interface{}, err error)
}

type Record struct {
	Key   interface{}
	Value interface{}
}

// SliceSource replays a fixed list of records.
type SliceSource struct {
	records []Record
	cursor  int
}

func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (key, value interface{}, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if s.cursor >= len(s.records) {
		return nil, nil, io.EOF
	}

	r := s.records[s.cursor]
	s.cursor++

	return r.Key, r.Value, nil
}

// Run feeds both sources into the co-stream concurrently until both are
// exhausted. The first source or dispatch error cancels the other side and is
// returned. Run does not close the co-stream.
func (s *CoStream) Run(ctx context.Context, primary, secondary Source) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.consume(ctx, join.SidePrimary, primary)
	})

	g.Go(func() error {
		return s.consume(ctx, join.SideSecondary, secondary)
	})

	return g.Wait()
}

func (s *CoStream) consume(ctx context.Context, side join.Side, source Source) error {
	for {
		key, value, err := source.Next(ctx)
		if err == io.EOF {
			s.logger.Info(fmt.Sprintf(`%s source exhausted`, side))
			return nil
		}

		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`%s source failed`, side))
		}

		if err := s.dispatch(ctx, side, key, value); err != nil {
			return err
		}
	}
}
