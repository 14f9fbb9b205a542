package intersect

import (
	"math"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/types"
)

const (
	// Average number of cells per triangle along each axis.
	gridDensity = 2.0

	// Upper bound for the number of cells along a single axis.
	maxCellsPerAxis = 128
)

// A uniform grid that bins mesh triangles into axis-aligned cells and walks
// the cells pierced by each ray in front-to-back order. The grid returns the
// same intersection as a linear scan, including the lowest-id tie-break.
type Grid struct {
	mesh *scene.Mesh

	min      types.Vec3
	extent   types.Vec3
	cellSize types.Vec3
	numCells [3]int

	// Triangle indices per cell, sorted by triangle id.
	cells [][]int32

	// Slack used when deciding that no closer hit can exist in later cells.
	tEpsilon float64
}

// Build a grid for the given mesh. Degenerate triangles are skipped since
// they can never be hit.
func NewGrid(mesh *scene.Mesh) *Grid {
	g := &Grid{mesh: mesh}

	var bbox [2]types.Vec3
	numTris := 0
	for _, tri := range mesh.Triangles {
		if tri.Degenerate() {
			continue
		}
		triBox := tri.BBox()
		if numTris == 0 {
			bbox = triBox
		} else {
			bbox[0] = types.MinVec3(bbox[0], triBox[0])
			bbox[1] = types.MaxVec3(bbox[1], triBox[1])
		}
		numTris++
	}
	if numTris == 0 {
		return g
	}

	// Pad the grid so flat meshes still get a non-empty volume and triangles
	// lying on a cell boundary get binned into both neighbors.
	maxExtent := bbox[1].Sub(bbox[0]).MaxComponent()
	pad := 1e-9 * math.Max(1, maxExtent)
	g.tEpsilon = 4 * pad
	padVec := types.XYZ(pad, pad, pad)
	g.min = bbox[0].Sub(padVec)
	g.extent = bbox[1].Add(padVec).Sub(g.min)

	minExtent := math.Max(maxExtent*1e-3, pad)
	volume := 1.0
	for axis := 0; axis < 3; axis++ {
		volume *= math.Max(g.extent[axis], minExtent)
	}
	s := math.Cbrt(volume / float64(numTris))

	totalCells := 1
	for axis := 0; axis < 3; axis++ {
		n := int(gridDensity*g.extent[axis]/s) + 1
		if n > maxCellsPerAxis {
			n = maxCellsPerAxis
		}
		g.numCells[axis] = n
		g.cellSize[axis] = g.extent[axis] / float64(n)
		totalCells *= n
	}

	g.cells = make([][]int32, totalCells)
	for _, tri := range mesh.Triangles {
		if tri.Degenerate() {
			continue
		}
		triBox := tri.BBox()
		lo := g.cellCoords(triBox[0].Sub(padVec))
		hi := g.cellCoords(triBox[1].Add(padVec))
		for z := lo[2]; z <= hi[2]; z++ {
			for y := lo[1]; y <= hi[1]; y++ {
				for x := lo[0]; x <= hi[0]; x++ {
					idx := g.cellIndex(x, y, z)
					g.cells[idx] = append(g.cells[idx], int32(tri.Id))
				}
			}
		}
	}

	return g
}

// Number of grid cells along each axis.
func (g *Grid) Dimensions() [3]int {
	return g.numCells
}

func (g *Grid) ClosestHit(ray scene.Ray) scene.Intersection {
	if len(g.cells) == 0 || ValidateRay(ray) != nil {
		return scene.NoHit
	}

	tEntry, tExit, ok := g.clip(ray)
	if !ok {
		return scene.NoHit
	}

	var (
		cell    [3]int
		step    [3]int
		stop    [3]int
		tNext   [3]float64
		tDelta  [3]float64
		entryPt = ray.PointAt(tEntry)
	)
	for axis := 0; axis < 3; axis++ {
		cell[axis] = g.axisCell(axis, entryPt[axis])
		dir := ray.Dir[axis]
		switch {
		case dir > 0:
			step[axis] = 1
			stop[axis] = g.numCells[axis]
			tNext[axis] = (g.min[axis] + float64(cell[axis]+1)*g.cellSize[axis] - ray.Origin[axis]) / dir
			tDelta[axis] = g.cellSize[axis] / dir
		case dir < 0:
			step[axis] = -1
			stop[axis] = -1
			tNext[axis] = (g.min[axis] + float64(cell[axis])*g.cellSize[axis] - ray.Origin[axis]) / dir
			tDelta[axis] = -g.cellSize[axis] / dir
		default:
			stop[axis] = -1
			tNext[axis] = math.Inf(1)
			tDelta[axis] = math.Inf(1)
		}
	}

	var closest *scene.Triangle
	closestT := math.Inf(1)
	for {
		for _, triIdx := range g.cells[g.cellIndex(cell[0], cell[1], cell[2])] {
			tri := g.mesh.Triangles[triIdx]
			t, hit := HitTriangle(ray, tri)
			if !hit {
				continue
			}
			if t < closestT || (t == closestT && tri.Id < closest.Id) {
				closestT = t
				closest = tri
			}
		}

		// Pick the axis whose cell boundary is crossed first.
		axis := 0
		if tNext[1] < tNext[axis] {
			axis = 1
		}
		if tNext[2] < tNext[axis] {
			axis = 2
		}

		// Any hit beyond this cell's exit point is binned into a later cell.
		if closest != nil && closestT < tNext[axis]-g.tEpsilon {
			break
		}
		if tNext[axis] > tExit+g.tEpsilon {
			break
		}

		cell[axis] += step[axis]
		if cell[axis] == stop[axis] {
			break
		}
		tNext[axis] += tDelta[axis]
	}

	if closest == nil {
		return scene.NoHit
	}
	return scene.NewIntersection(ray, closest, closestT)
}

// Clip the ray against the grid bounds and return the parametric range
// [tEntry, tExit] (with tEntry >= 0) inside the grid.
func (g *Grid) clip(ray scene.Ray) (float64, float64, bool) {
	tEntry, tExit := 0.0, math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		lo := g.min[axis]
		hi := lo + g.extent[axis]
		origin, dir := ray.Origin[axis], ray.Dir[axis]
		if dir == 0 {
			if origin < lo || origin > hi {
				return 0, 0, false
			}
			continue
		}

		t0 := (lo - origin) / dir
		t1 := (hi - origin) / dir
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tEntry = math.Max(tEntry, t0)
		tExit = math.Min(tExit, t1)
	}

	return tEntry, tExit, tEntry <= tExit
}

func (g *Grid) axisCell(axis int, coord float64) int {
	c := int((coord - g.min[axis]) / g.cellSize[axis])
	if c < 0 {
		return 0
	}
	if c >= g.numCells[axis] {
		return g.numCells[axis] - 1
	}
	return c
}

func (g *Grid) cellCoords(p types.Vec3) [3]int {
	return [3]int{g.axisCell(0, p[0]), g.axisCell(1, p[1]), g.axisCell(2, p[2])}
}

func (g *Grid) cellIndex(x, y, z int) int {
	return x + g.numCells[0]*(y+g.numCells[1]*z)
}
