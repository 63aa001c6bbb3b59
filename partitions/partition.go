// Package partitions splits the cells of a grid into partitions and evaluates
// them in parallel, one evaluation context per partition.
package partitions

import (
	"fmt"
	"math"
	"strings"
)

// Partition is a set of cells evaluated by one worker with its own
// evaluation context.
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Cell membership
	Cells    []int // Global cell indices in this partition, increasing
	NumCells int
}

// PartitionLayout is the complete decomposition of a grid.
type PartitionLayout struct {
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumCells) across all partitions
	TotalCells    int
	NumPartitions int

	// Cell to partition mapping
	CToP []int // Length TotalCells: cell k belongs to partition CToP[k]
}

// PartitionStats summarizes the balance of a layout.
type PartitionStats struct {
	NumPartitions int
	MinCells      int
	MaxCells      int
	AvgCells      float64
	Imbalance     float64 // MaxCells / AvgCells
}

// GetPartition returns the partition containing cell k, -1 if k is out of
// range.
func (pl *PartitionLayout) GetPartition(cell int) int {
	if cell < 0 || cell >= len(pl.CToP) {
		return -1
	}
	return pl.CToP[cell]
}

// ValidateLayout checks that every cell belongs to exactly one partition and
// that the stored sizes are consistent.
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout has %d partitions, NumPartitions is %d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.CToP) != pl.TotalCells {
		return fmt.Errorf("CToP has %d entries for %d cells", len(pl.CToP), pl.TotalCells)
	}
	seen := make([]bool, pl.TotalCells)
	actualMax, total := 0, 0
	for id, p := range pl.Partitions {
		if p.ID != id {
			return fmt.Errorf("partition at position %d has ID %d", id, p.ID)
		}
		if p.NumCells != len(p.Cells) {
			return fmt.Errorf("partition %d: NumCells %d != len(Cells) %d", p.ID, p.NumCells, len(p.Cells))
		}
		for _, k := range p.Cells {
			if k < 0 || k >= pl.TotalCells {
				return fmt.Errorf("partition %d: cell %d out of range", p.ID, k)
			}
			if seen[k] {
				return fmt.Errorf("partition %d: cell %d assigned twice", p.ID, k)
			}
			if pl.CToP[k] != p.ID {
				return fmt.Errorf("partition %d: CToP[%d] = %d", p.ID, k, pl.CToP[k])
			}
			seen[k] = true
		}
		total += p.NumCells
		actualMax = max(actualMax, p.NumCells)
	}
	if total != pl.TotalCells {
		return fmt.Errorf("partitions hold %d cells, want %d", total, pl.TotalCells)
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d", actualMax, pl.KpartMax)
	}
	return nil
}

// PartitionStatistics returns the balance of the layout.
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{NumPartitions: pl.NumPartitions, MinCells: math.MaxInt}
	if pl.NumPartitions == 0 {
		stats.MinCells = 0
		return stats
	}
	for _, p := range pl.Partitions {
		stats.MinCells = min(stats.MinCells, p.NumCells)
		stats.MaxCells = max(stats.MaxCells, p.NumCells)
	}
	stats.AvgCells = float64(pl.TotalCells) / float64(pl.NumPartitions)
	if stats.AvgCells > 0 {
		stats.Imbalance = float64(stats.MaxCells) / stats.AvgCells
	}
	return stats
}

func (pl *PartitionLayout) String() string {
	var sb strings.Builder
	s := pl.PartitionStatistics()
	sb.WriteString("=== Partition Layout ===\n")
	sb.WriteString(fmt.Sprintf("  Cells: %d\n", pl.TotalCells))
	sb.WriteString(fmt.Sprintf("  Partitions: %d\n", pl.NumPartitions))
	sb.WriteString(fmt.Sprintf("  Cells per partition: min %d, max %d, avg %.2f (imbalance %.3f)\n",
		s.MinCells, s.MaxCells, s.AvgCells, s.Imbalance))
	for _, p := range pl.Partitions {
		if p.NumCells == 0 {
			sb.WriteString(fmt.Sprintf("  [%d] empty\n", p.ID))
			continue
		}
		sb.WriteString(fmt.Sprintf("  [%d] %d cells, first %d, last %d\n",
			p.ID, p.NumCells, p.Cells[0], p.Cells[p.NumCells-1]))
	}
	sb.WriteString("========================\n")
	return sb.String()
}

// PartitionedArray holds Stride values per cell, stored partition by
// partition so that each worker writes a contiguous block.
//
// Layout: [Partition 0 Data][Partition 1 Data]...[Partition N-1 Data]
type PartitionedArray struct {
	GlobalData []float64

	// Partition p's data is GlobalData[Offsets[p]:Offsets[p+1]]
	Offsets []int

	// Values per cell
	Stride int

	position []int // position of each cell inside its partition
	cToP     []int
}

// AllocatePartitionedArray creates zeroed storage of stride values for every
// cell of the layout.
func AllocatePartitionedArray(layout *PartitionLayout, stride int) *PartitionedArray {
	offsets := make([]int, layout.NumPartitions+1)
	position := make([]int, layout.TotalCells)
	for i, p := range layout.Partitions {
		for j, k := range p.Cells {
			position[k] = j
		}
		offsets[i+1] = offsets[i] + p.NumCells*stride
	}
	return &PartitionedArray{
		GlobalData: make([]float64, offsets[layout.NumPartitions]),
		Offsets:    offsets,
		Stride:     stride,
		position:   position,
		cToP:       layout.CToP,
	}
}

// GetPartitionData returns partition p's block, nil if p is out of range.
func (pa *PartitionedArray) GetPartitionData(p int) []float64 {
	if p < 0 || p >= len(pa.Offsets)-1 {
		return nil
	}
	return pa.GlobalData[pa.Offsets[p]:pa.Offsets[p+1]]
}

// Cell returns the Stride values of cell k. Workers may write the values of
// the cells of their own partition concurrently.
func (pa *PartitionedArray) Cell(k int) []float64 {
	start := pa.Offsets[pa.cToP[k]] + pa.position[k]*pa.Stride
	return pa.GlobalData[start : start+pa.Stride]
}

// Gather returns the values in global cell order.
func (pa *PartitionedArray) Gather() []float64 {
	out := make([]float64, 0, len(pa.GlobalData))
	for k := range pa.position {
		out = append(out, pa.Cell(k)...)
	}
	return out
}
