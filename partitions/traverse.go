package partitions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/notargets/fevalues/fevalues"
	"github.com/notargets/fevalues/mesh"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Factory builds the evaluation context of one worker. It is called once per
// partition, concurrently; the element and mapping it captures are shared.
type Factory func() (*fevalues.Values, error)

// Visit is called for every usable cell after its context was filled. Calls
// for cells of one partition are sequential, calls for different partitions
// run concurrently.
type Visit func(partition int, v *fevalues.Values, cell mesh.Cell) error

// Reinit fills a context for a cell; the default is Values.Reinit.
type Reinit func(v *fevalues.Values, cell mesh.Cell) error

// Traverser evaluates the cells of a layout in parallel.
type Traverser struct {
	Layout  *PartitionLayout
	Factory Factory
	Reinit  Reinit
	Log     *zap.Logger
	Metrics *Metrics
}

// Result reports how the cells of a traversal were handled.
type Result struct {
	Evaluated int
	Unusable  []int // Cells whose fill reported fevalues.ErrCellUnusable, increasing
	PerWorker []int // Cells evaluated by each partition
}

// Run visits every cell. Cells whose fill reports fevalues.ErrCellUnusable
// are skipped and reported; any other error stops the traversal and is
// returned.
func (t *Traverser) Run(ctx context.Context, cells []mesh.Cell, visit Visit) (Result, error) {
	if t.Layout == nil || t.Factory == nil {
		return Result{}, fmt.Errorf("traversal needs a layout and a factory")
	}
	if len(cells) != t.Layout.TotalCells {
		return Result{}, fmt.Errorf("layout covers %d cells, got %d", t.Layout.TotalCells, len(cells))
	}
	log := t.Log
	if log == nil {
		log = zap.NewNop()
	}
	reinit := t.Reinit
	if reinit == nil {
		reinit = func(v *fevalues.Values, cell mesh.Cell) error { return v.Reinit(cell) }
	}

	evaluated := make([]int, t.Layout.NumPartitions)
	unusable := make([][]int, t.Layout.NumPartitions)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, p := range t.Layout.Partitions {
		if p.NumCells == 0 {
			continue
		}
		eg.Go(func() error {
			v, err := t.Factory()
			if err != nil {
				return fmt.Errorf("partition %d: %w", p.ID, err)
			}
			bytes := v.MemoryFootprint()
			t.Metrics.resident(bytes)
			defer t.Metrics.resident(-bytes)

			for _, k := range p.Cells {
				if err := egCtx.Err(); err != nil {
					return err
				}
				cell := cells[k]
				if err := reinit(v, cell); err != nil {
					if errors.Is(err, fevalues.ErrCellUnusable) {
						log.Warn("skipping unusable cell",
							zap.Int("partition", p.ID),
							zap.Int("cell", cell.Index),
							zap.Error(err))
						t.Metrics.count(OutcomeUnusable)
						unusable[p.ID] = append(unusable[p.ID], k)
						continue
					}
					t.Metrics.count(OutcomeFailed)
					return fmt.Errorf("partition %d: %w", p.ID, err)
				}
				if visit != nil {
					if err := visit(p.ID, v, cell); err != nil {
						t.Metrics.count(OutcomeFailed)
						return fmt.Errorf("partition %d, cell %d: %w", p.ID, cell.Index, err)
					}
				}
				t.Metrics.count(OutcomeEvaluated)
				evaluated[p.ID]++
			}
			log.Debug("partition done",
				zap.Int("partition", p.ID),
				zap.Int("cells", p.NumCells),
				zap.Int("evaluated", evaluated[p.ID]))
			return nil
		})
	}
	err := eg.Wait()

	res := Result{PerWorker: evaluated}
	for p := range evaluated {
		res.Evaluated += evaluated[p]
		res.Unusable = append(res.Unusable, unusable[p]...)
	}
	slices.Sort(res.Unusable)
	return res, err
}
