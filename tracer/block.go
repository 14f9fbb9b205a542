package tracer

// A horizontal slice of the frame that is processed as a single unit of work.
type BlockRequest struct {
	// Block start row and height.
	BlockY int
	BlockH int
}

// Split a frame of the given height into at most numBlocks contiguous row
// blocks of (almost) equal height. Rows that do not divide evenly are assigned
// to the first blocks.
func SplitRows(frameH, numBlocks int) []BlockRequest {
	if frameH <= 0 {
		return nil
	}
	if numBlocks < 1 {
		numBlocks = 1
	}
	if numBlocks > frameH {
		numBlocks = frameH
	}

	blocks := make([]BlockRequest, numBlocks)
	rowsPerBlock := frameH / numBlocks
	extraRows := frameH % numBlocks

	blockY := 0
	for idx := range blocks {
		blockH := rowsPerBlock
		if idx < extraRows {
			blockH++
		}
		blocks[idx] = BlockRequest{BlockY: blockY, BlockH: blockH}
		blockY += blockH
	}

	return blocks
}
