package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPartition(t *testing.T) {
	pb := &PartitionBuilder{NumCells: 10, NumPartitions: 3}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	require.NoError(t, layout.ValidateLayout())

	assert.Equal(t, []int{0, 1, 2, 3}, layout.Partitions[0].Cells)
	assert.Equal(t, []int{4, 5, 6}, layout.Partitions[1].Cells)
	assert.Equal(t, []int{7, 8, 9}, layout.Partitions[2].Cells)
	assert.Equal(t, 4, layout.KpartMax)
	assert.Equal(t, 1, layout.GetPartition(5))
	assert.Equal(t, -1, layout.GetPartition(10))

	stats := layout.PartitionStatistics()
	assert.Equal(t, 3, stats.MinCells)
	assert.Equal(t, 4, stats.MaxCells)
	assert.InDelta(t, 4/(10.0/3), stats.Imbalance, 1e-15)
	assert.Contains(t, layout.String(), "[1] 3 cells, first 4, last 6")
}

func TestRoundRobinAndTargetSize(t *testing.T) {
	pb := &PartitionBuilder{NumCells: 7, TargetPartitionSize: 3, Strategy: RoundRobin}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 3, layout.NumPartitions)
	assert.Equal(t, []int{0, 3, 6}, layout.Partitions[0].Cells)
	assert.Equal(t, []int{2, 5}, layout.Partitions[2].Cells)

	// more workers than cells
	layout, err = (&PartitionBuilder{NumCells: 2, NumPartitions: 8}).BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 2, layout.NumPartitions)

	layout, err = (&PartitionBuilder{}).BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 1, layout.NumPartitions)
	assert.Zero(t, layout.KpartMax)

	_, err = (&PartitionBuilder{NumCells: 3, Strategy: PartitionStrategy(9)}).BuildPartitions()
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]PartitionStrategy{
		"":            BlockPartition,
		"block":       BlockPartition,
		"Round_Robin": RoundRobin,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if name != "" {
			assert.Equal(t, want.String(), got.String())
		}
	}
	_, err := ParseStrategy("metis")
	assert.Error(t, err)
}

func TestValidateLayoutErrors(t *testing.T) {
	layout, err := (&PartitionBuilder{NumCells: 4, NumPartitions: 2}).BuildPartitions()
	require.NoError(t, err)

	layout.CToP[3] = 0
	assert.Error(t, layout.ValidateLayout())
	layout.CToP[3] = 1

	layout.KpartMax = 3
	assert.Error(t, layout.ValidateLayout())
	layout.KpartMax = 2

	layout.Partitions[1].Cells = []int{2, 2}
	assert.Error(t, layout.ValidateLayout())
}

func TestPartitionedArray(t *testing.T) {
	layout, err := (&PartitionBuilder{NumCells: 5, NumPartitions: 2, Strategy: RoundRobin}).BuildPartitions()
	require.NoError(t, err)
	pa := AllocatePartitionedArray(layout, 2)
	assert.Equal(t, []int{0, 6, 10}, pa.Offsets)

	for k := 0; k < 5; k++ {
		copy(pa.Cell(k), []float64{float64(k), -float64(k)})
	}
	// partition 0 holds cells 0, 2, 4
	assert.Equal(t, []float64{0, 0, 2, -2, 4, -4}, pa.GetPartitionData(0))
	assert.Nil(t, pa.GetPartitionData(2))
	assert.Equal(t, []float64{0, 0, 1, -1, 2, -2, 3, -3, 4, -4}, pa.Gather())
}
