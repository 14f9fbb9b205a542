package intersect

import (
	"math"
	"sync"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/types"
)

const (
	// Nodes with this many triangles or less become leaves.
	bvhMinLeafItems = 4

	// Hard limit for the tree depth.
	bvhMaxDepth = 48

	// Number of evenly spaced split candidates evaluated per axis.
	bvhSplitCandidates = 32

	// The builder will not attempt to split a node along an axis whose
	// side length is less than this fraction of the mesh extent.
	bvhMinSideFraction = 1e-6
)

type bvhNode struct {
	min, max types.Vec3

	// Child node indices for interior nodes; left is -1 for leaves.
	left, right int32

	// Leaves reference items[first : first+count].
	first, count int32
}

type bvhItem struct {
	triIdx int32
	bbox   [2]types.Vec3
	center types.Vec3
}

type splitScore struct {
	axis       int
	splitPoint float64
	score      float64
}

// A bounding volume hierarchy built with the surface area heuristic. Like
// the grid, it returns the same intersection as a linear scan.
type BVH struct {
	mesh  *scene.Mesh
	nodes []bvhNode
	items []int32

	// Node boxes are padded by pad; hits are accepted up to closestT+tEpsilon.
	pad      float64
	tEpsilon float64
	minSide  float64
	maxDepth int
}

// Build a BVH for the given mesh. Degenerate triangles are skipped since
// they can never be hit.
func NewBVH(mesh *scene.Mesh) *BVH {
	b := &BVH{mesh: mesh}

	items := make([]bvhItem, 0, len(mesh.Triangles))
	for _, tri := range mesh.Triangles {
		if tri.Degenerate() {
			continue
		}
		bbox := tri.BBox()
		items = append(items, bvhItem{
			triIdx: int32(tri.Id),
			bbox:   bbox,
			center: bbox[0].Add(bbox[1]).Mul(0.5),
		})
	}
	if len(items) == 0 {
		return b
	}

	bbox := itemBounds(items)
	maxExtent := bbox[1].Sub(bbox[0]).MaxComponent()
	b.pad = 1e-9 * math.Max(1, maxExtent)
	b.tEpsilon = 4 * b.pad
	b.minSide = bvhMinSideFraction * maxExtent
	b.nodes = make([]bvhNode, 0, 2*len(items)/bvhMinLeafItems+1)
	b.items = make([]int32, 0, len(items))

	b.partition(items, 0)
	return b
}

// Number of tree nodes and the depth of the deepest leaf.
func (b *BVH) Size() (nodes, depth int) {
	return len(b.nodes), b.maxDepth
}

// Partition items and return the index of the generated node.
func (b *BVH) partition(items []bvhItem, depth int) int32 {
	if depth > b.maxDepth {
		b.maxDepth = depth
	}

	bbox := itemBounds(items)
	padVec := types.XYZ(b.pad, b.pad, b.pad)
	node := bvhNode{
		min:  bbox[0].Sub(padVec),
		max:  bbox[1].Add(padVec),
		left: -1, right: -1,
	}

	if len(items) <= bvhMinLeafItems || depth >= bvhMaxDepth {
		return b.createLeaf(node, items)
	}

	// Create a leaf if no split improves the score of the current node
	best, found := b.bestSplit(items, bbox)
	if !found || best.score >= scorePartition(items) {
		return b.createLeaf(node, items)
	}

	// Partition in place around the split point
	pivot := 0
	for idx := range items {
		if items[idx].center[best.axis] < best.splitPoint {
			items[pivot], items[idx] = items[idx], items[pivot]
			pivot++
		}
	}

	nodeIndex := int32(len(b.nodes))
	b.nodes = append(b.nodes, node)

	left := b.partition(items[:pivot], depth+1)
	right := b.partition(items[pivot:], depth+1)
	b.nodes[nodeIndex].left = left
	b.nodes[nodeIndex].right = right

	return nodeIndex
}

// Evaluate evenly spaced split candidates along each axis and return the one
// with the lowest SAH score. Axes are scored in parallel.
func (b *BVH) bestSplit(items []bvhItem, bbox [2]types.Vec3) (splitScore, bool) {
	var axisBest [3]splitScore
	var wg sync.WaitGroup

	side := bbox[1].Sub(bbox[0])
	for axis := 0; axis < 3; axis++ {
		axisBest[axis] = splitScore{axis: axis, score: math.Inf(1)}
		if side[axis] < b.minSide || side[axis] == 0 {
			continue
		}

		wg.Add(1)
		go func(axis int) {
			defer wg.Done()
			step := side[axis] / bvhSplitCandidates
			for k := 1; k < bvhSplitCandidates; k++ {
				splitPoint := bbox[0][axis] + float64(k)*step
				if score := scoreSplit(items, axis, splitPoint); score < axisBest[axis].score {
					axisBest[axis] = splitScore{axis: axis, splitPoint: splitPoint, score: score}
				}
			}
		}(axis)
	}
	wg.Wait()

	best := axisBest[0]
	for _, candidate := range axisBest[1:] {
		if candidate.score < best.score {
			best = candidate
		}
	}
	return best, !math.IsInf(best.score, 1)
}

// Setup the node as a leaf containing all items. Returns the node index.
func (b *BVH) createLeaf(node bvhNode, items []bvhItem) int32 {
	node.first = int32(len(b.items))
	node.count = int32(len(items))
	for _, item := range items {
		b.items = append(b.items, item.triIdx)
	}

	nodeIndex := int32(len(b.nodes))
	b.nodes = append(b.nodes, node)
	return nodeIndex
}

func (b *BVH) ClosestHit(ray scene.Ray) scene.Intersection {
	if len(b.nodes) == 0 || ValidateRay(ray) != nil {
		return scene.NoHit
	}

	var invDir types.Vec3
	for axis := 0; axis < 3; axis++ {
		invDir[axis] = 1.0 / ray.Dir[axis]
	}

	var closest *scene.Triangle
	closestT := math.Inf(1)

	stack := make([]int32, 1, bvhMaxDepth+2)
	for len(stack) > 0 {
		node := &b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if !node.hit(ray, invDir, closestT+b.tEpsilon) {
			continue
		}

		if node.left >= 0 {
			stack = append(stack, node.right, node.left)
			continue
		}

		for _, triIdx := range b.items[node.first : node.first+node.count] {
			tri := b.mesh.Triangles[triIdx]
			t, hit := HitTriangle(ray, tri)
			if !hit {
				continue
			}
			if t < closestT || (t == closestT && tri.Id < closest.Id) {
				closestT = t
				closest = tri
			}
		}
	}

	if closest == nil {
		return scene.NoHit
	}
	return scene.NewIntersection(ray, closest, closestT)
}

// Slab test against the node box for t in [0, tMax].
func (n *bvhNode) hit(ray scene.Ray, invDir types.Vec3, tMax float64) bool {
	tNear, tFar := 0.0, tMax
	for axis := 0; axis < 3; axis++ {
		if ray.Dir[axis] == 0 {
			if ray.Origin[axis] < n.min[axis] || ray.Origin[axis] > n.max[axis] {
				return false
			}
			continue
		}

		t0 := (n.min[axis] - ray.Origin[axis]) * invDir[axis]
		t1 := (n.max[axis] - ray.Origin[axis]) * invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return false
		}
	}
	return true
}

// Score a split using the surface area heuristic (lower is better):
// left count * left area + right count * right area. Splits that generate
// an empty partition get the worst possible score.
func scoreSplit(items []bvhItem, axis int, splitPoint float64) float64 {
	inf := math.Inf(1)
	lmin, rmin := types.XYZ(inf, inf, inf), types.XYZ(inf, inf, inf)
	lmax, rmax := types.XYZ(-inf, -inf, -inf), types.XYZ(-inf, -inf, -inf)

	leftCount, rightCount := 0, 0
	for _, item := range items {
		if item.center[axis] < splitPoint {
			leftCount++
			lmin = types.MinVec3(lmin, item.bbox[0])
			lmax = types.MaxVec3(lmax, item.bbox[1])
		} else {
			rightCount++
			rmin = types.MinVec3(rmin, item.bbox[0])
			rmax = types.MaxVec3(rmax, item.bbox[1])
		}
	}

	if leftCount == 0 || rightCount == 0 {
		return inf
	}
	return float64(leftCount)*halfArea(lmax.Sub(lmin)) + float64(rightCount)*halfArea(rmax.Sub(rmin))
}

// Score an unsplit set of items: count * area.
func scorePartition(items []bvhItem) float64 {
	if len(items) == 0 {
		return math.Inf(1)
	}
	bbox := itemBounds(items)
	return float64(len(items)) * halfArea(bbox[1].Sub(bbox[0]))
}

func itemBounds(items []bvhItem) [2]types.Vec3 {
	bbox := items[0].bbox
	for _, item := range items[1:] {
		bbox[0] = types.MinVec3(bbox[0], item.bbox[0])
		bbox[1] = types.MaxVec3(bbox[1], item.bbox[1])
	}
	return bbox
}

func halfArea(side types.Vec3) float64 {
	return side[0]*side[1] + side[1]*side[2] + side[0]*side[2]
}
