package geoindex

import (
	"math"

	"constituency-streets/internal/models"
)

// PointIndex is a 2-d tree over WGS84 points supporting nearest-neighbour
// lookup by great-circle distance. It indexes positions into the caller's
// slice so the same structure serves both unit centroids and postcode
// points. Read-only after construction, safe for concurrent queries.
type PointIndex struct {
	root *kdNode
}

type kdItem struct {
	pt  models.Point
	idx int
}

type kdNode struct {
	item kdItem
	axis int // 0: lon, 1: lat
	l, r *kdNode
}

// NewPointIndex builds the tree. Points must already be in WGS84; callers
// pass the index of each point in their own backing slice.
func NewPointIndex(points []models.Point) *PointIndex {
	items := make([]kdItem, len(points))
	for i, p := range points {
		items[i] = kdItem{pt: p, idx: i}
	}
	return &PointIndex{root: buildKD(items, 0)}
}

func buildKD(items []kdItem, depth int) *kdNode {
	if len(items) == 0 {
		return nil
	}
	axis := depth % 2
	mid := len(items) / 2
	selectNth(items, mid, axis)
	node := &kdNode{item: items[mid], axis: axis}
	node.l = buildKD(items[:mid], depth+1)
	node.r = buildKD(items[mid+1:], depth+1)
	return node
}

// selectNth partitions items so the nth element is in its sorted position
// on the given axis, avoiding a full sort per level.
func selectNth(a []kdItem, n, axis int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, axis)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []kdItem, lo, hi, pivot, axis int) int {
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if axisLess(a[j].pt, pv.pt, axis) {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func axisLess(x, y models.Point, axis int) bool {
	if axis == 0 {
		return x.X < y.X
	}
	return x.Y < y.Y
}

// Nearest returns the index of the closest point and its distance in km.
// ok is false for an empty index.
func (t *PointIndex) Nearest(pt models.Point) (int, float64, bool) {
	if t.root == nil {
		return 0, 0, false
	}
	bestIdx := -1
	bestD := math.MaxFloat64
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		d := haversineKm(pt, n.item.pt)
		if d < bestD {
			bestD = d
			bestIdx = n.item.idx
		}
		var key, split float64
		if n.axis == 0 {
			key, split = pt.X, n.item.pt.X
		} else {
			key, split = pt.Y, n.item.pt.Y
		}
		first, second := n.l, n.r
		if key > split {
			first, second = n.r, n.l
		}
		dfs(first)
		// Cross the splitting plane only when it could hold a closer
		// point. One degree of latitude is ~111 km everywhere, but one
		// degree of longitude shrinks to ~111*cos(lat) km, so the
		// longitude bound widens with latitude.
		limit := bestD / 111.0
		if n.axis == 0 {
			cosLat := math.Cos(pt.Lat() * math.Pi / 180)
			if cosLat < 1e-3 {
				cosLat = 1e-3
			}
			limit = bestD / (111.0 * cosLat)
		}
		if math.Abs(key-split) < limit {
			dfs(second)
		}
	}
	dfs(t.root)
	return bestIdx, bestD, true
}

// haversineKm is the great-circle distance between two WGS84 points.
func haversineKm(a, b models.Point) float64 {
	const r = 6371.0
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat()*math.Pi/180)*math.Cos(b.Lat()*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * r * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
