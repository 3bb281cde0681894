// Package spatial provides a spatial hash for neighbor queries over an
// unbounded 2D world.
//
// Entities are stored by integer ID (not pointer) to keep cells compact.
package spatial

import (
	"math"
)

// cellKey addresses one cell of the infinite grid
type cellKey struct {
	col, row int
}

// SpatialGrid hashes entity IDs into fixed-size cells.
// Cells exist only while they hold at least one entity, so the world needs no bounds.
//
// Optimal cell size equals the typical query radius.
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cells       map[cellKey][]uint32
	positions   map[uint32]cellKey
	scratch     []uint32 // reusable buffer for query results
}

// NewSpatialGrid creates an empty grid. cellSize must be positive.
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if !(cellSize > 0) {
		cellSize = 1
	}
	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[cellKey][]uint32),
		positions:   make(map[uint32]cellKey),
		scratch:     make([]uint32, 0, 64),
	}
}

func (g *SpatialGrid) key(x, y float64) cellKey {
	return cellKey{
		col: int(math.Floor(x * g.invCellSize)),
		row: int(math.Floor(y * g.invCellSize)),
	}
}

// Clear removes every entity
func (g *SpatialGrid) Clear() {
	for k := range g.cells {
		delete(g.cells, k)
	}
	for id := range g.positions {
		delete(g.positions, id)
	}
}

// Insert adds or moves an entity to position (x, y)
func (g *SpatialGrid) Insert(entityID uint32, x, y float64) {
	if _, ok := g.positions[entityID]; ok {
		g.Remove(entityID)
	}
	k := g.key(x, y)
	g.cells[k] = append(g.cells[k], entityID)
	g.positions[entityID] = k
}

// Remove deletes an entity; unknown IDs are ignored
func (g *SpatialGrid) Remove(entityID uint32) {
	k, ok := g.positions[entityID]
	if !ok {
		return
	}
	delete(g.positions, entityID)

	cell := g.cells[k]
	for i, id := range cell {
		if id == entityID {
			cell[i] = cell[len(cell)-1]
			cell = cell[:len(cell)-1]
			break
		}
	}
	if len(cell) == 0 {
		delete(g.cells, k)
		return
	}
	g.cells[k] = cell
}

// Len returns the number of entities in the grid
func (g *SpatialGrid) Len() int { return len(g.positions) }

// QueryRadius returns all entity IDs potentially within radius of (cx, cy).
// The result may hold entities outside the radius; callers check distance.
// The returned slice is reused by the next query.
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	return g.QueryRect(cx-radius, cy-radius, cx+radius, cy+radius)
}

// QueryRect returns the IDs in every cell the rectangle touches. Like
// QueryRadius it reuses its result slice.
func (g *SpatialGrid) QueryRect(minX, minY, maxX, maxY float64) []uint32 {
	g.scratch = g.scratch[:0]
	if !(minX <= maxX && minY <= maxY) {
		return g.scratch
	}
	lo := g.key(minX, minY)
	hi := g.key(maxX, maxY)

	// Large areas walk the occupied cells instead of the covered ones
	cols, rows := float64(hi.col-lo.col)+1, float64(hi.row-lo.row)+1
	if cols*rows > float64(len(g.cells)) {
		for k, ids := range g.cells {
			if k.col >= lo.col && k.col <= hi.col && k.row >= lo.row && k.row <= hi.row {
				g.scratch = append(g.scratch, ids...)
			}
		}
		return g.scratch
	}

	for row := lo.row; row <= hi.row; row++ {
		for col := lo.col; col <= hi.col; col++ {
			g.scratch = append(g.scratch, g.cells[cellKey{col: col, row: row}]...)
		}
	}
	return g.scratch
}

// Stats returns grid statistics for debugging/profiling.
func (g *SpatialGrid) Stats() GridStats {
	var maxInCell int
	for _, cell := range g.cells {
		if len(cell) > maxInCell {
			maxInCell = len(cell)
		}
	}

	avgPerCell := 0.0
	if len(g.cells) > 0 {
		avgPerCell = float64(len(g.positions)) / float64(len(g.cells))
	}

	return GridStats{
		NonEmptyCells:  len(g.cells),
		TotalEntities:  len(g.positions),
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	NonEmptyCells  int
	TotalEntities  int
	MaxInCell      int
	AvgPerNonEmpty float64
}

// CellSize returns the configured cell size.
func (g *SpatialGrid) CellSize() float64 {
	return g.cellSize
}
