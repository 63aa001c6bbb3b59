package partitions

import (
	"fmt"
	"math"
	"strings"
)

// PartitionBuilder constructs partitions over the cells of a grid.
type PartitionBuilder struct {
	NumCells int

	// Partitioning parameters. NumPartitions wins over TargetPartitionSize
	// when both are set.
	NumPartitions       int
	TargetPartitionSize int
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how cells are grouped.
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive cells
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round_robin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy converts "block" or "round_robin" to a PartitionStrategy.
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "block":
		return BlockPartition, nil
	case "round_robin", "roundrobin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout. Block partitions differ in size
// by at most one cell, with the larger ones first.
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumCells < 0 {
		return nil, fmt.Errorf("negative cell count %d", pb.NumCells)
	}
	numPartitions := pb.calculateNumPartitions()

	cToP, err := pb.partitionCells(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(cToP, numPartitions)

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      calculateKpartMax(partitions),
		TotalCells:    pb.NumCells,
		NumPartitions: numPartitions,
		CToP:          cToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// calculateNumPartitions determines the partition count; there is always at
// least one partition and never more partitions than cells, unless there are
// no cells.
func (pb *PartitionBuilder) calculateNumPartitions() int {
	n := pb.NumPartitions
	if n <= 0 && pb.TargetPartitionSize > 0 {
		n = int(math.Ceil(float64(pb.NumCells) / float64(pb.TargetPartitionSize)))
	}
	if n > pb.NumCells {
		n = pb.NumCells
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (pb *PartitionBuilder) partitionCells(numPartitions int) ([]int, error) {
	cToP := make([]int, pb.NumCells)
	switch pb.Strategy {
	case BlockPartition:
		base, extra := pb.NumCells/numPartitions, pb.NumCells%numPartitions
		k := 0
		for p := 0; p < numPartitions; p++ {
			size := base
			if p < extra {
				size++
			}
			for i := 0; i < size; i++ {
				cToP[k] = p
				k++
			}
		}
	case RoundRobin:
		for i := range cToP {
			cToP[i] = i % numPartitions
		}
	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}
	return cToP, nil
}

func (pb *PartitionBuilder) createPartitions(cToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for p := range partitions {
		partitions[p].ID = p
	}
	for k, p := range cToP {
		partitions[p].Cells = append(partitions[p].Cells, k)
	}
	for p := range partitions {
		partitions[p].NumCells = len(partitions[p].Cells)
	}
	return partitions
}

func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumCells)
	}
	return kpartMax
}
