package tracer

import (
	"testing"
	"time"
)

func TestSplitRows(t *testing.T) {
	type spec struct {
		frameH    int
		numBlocks int
		expH      []int
	}
	specs := []spec{
		{10, 1, []int{10}},
		{10, 3, []int{4, 3, 3}},
		{10, 2, []int{5, 5}},
		{2, 8, []int{1, 1}},
		{5, 0, []int{5}},
		{0, 4, nil},
	}

	for index, s := range specs {
		blocks := SplitRows(s.frameH, s.numBlocks)
		if len(blocks) != len(s.expH) {
			t.Fatalf("[spec %d] expected %d blocks; got %d", index, len(s.expH), len(blocks))
		}

		nextY := 0
		for bIdx, block := range blocks {
			if block.BlockY != nextY {
				t.Fatalf("[spec %d] expected block %d to start at row %d; got %d", index, bIdx, nextY, block.BlockY)
			}
			if block.BlockH != s.expH[bIdx] {
				t.Fatalf("[spec %d] expected block %d height to be %d; got %d", index, bIdx, s.expH[bIdx], block.BlockH)
			}
			nextY += block.BlockH
		}
		if len(blocks) > 0 && nextY != s.frameH {
			t.Fatalf("[spec %d] expected blocks to cover %d rows; got %d", index, s.frameH, nextY)
		}
	}
}

func TestStatsTrack(t *testing.T) {
	stats := &Stats{Rays: 4}
	stats.Track("stage", timeZero())
	if len(stats.Stages) != 1 || stats.Stages[0].Name != "stage" {
		t.Fatalf("expected one tracked stage; got %v", stats.Stages)
	}

	stats.Reset()
	if stats.Rays != 0 || len(stats.Stages) != 0 {
		t.Fatalf("expected stats to be reset; got %+v", stats)
	}
}

func timeZero() time.Time {
	return time.Now()
}
