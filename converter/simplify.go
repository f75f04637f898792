package converter

import (
	"container/heap"

	"github.com/binzume/organconv/geom"
	"github.com/binzume/organconv/obj"
	"github.com/fogleman/simplify"
)

// pairQueue orders pairs by quadric error, then by their end points.
type pairQueue struct {
	simplify.PriorityQueue
}

func (q pairQueue) Less(i, j int) bool {
	a, b := q.PriorityQueue[i], q.PriorityQueue[j]
	ea, eb := a.Error(), b.Error()
	if ea != eb {
		return ea < eb
	}
	if a.A.Vector != b.A.Vector {
		return a.A.Vector.Less(b.A.Vector)
	}
	return a.B.Vector.Less(b.B.Vector)
}

// orderedSet keeps insertion order.
type orderedSet[T comparable] struct {
	items []T
	seen  map[T]bool
}

func (s *orderedSet[T]) add(v T) {
	if s.seen == nil {
		s.seen = map[T]bool{}
	}
	if !s.seen[v] {
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}

// decimate is the edge collapse of simplify.Simplify with every map iteration replaced by
// insertion order and ties in the queue broken by position, so equal input gives equal output.
func decimate(triangles []*simplify.Triangle, factor float64) []*simplify.Triangle {
	vectorVertex := map[simplify.Vector]*simplify.Vertex{}
	vertex := func(v simplify.Vector) *simplify.Vertex {
		if vv, ok := vectorVertex[v]; ok {
			return vv
		}
		vv := simplify.NewVertex(v)
		vectorVertex[v] = vv
		return vv
	}
	for _, t := range triangles {
		q := t.Quadric()
		for _, v := range []simplify.Vector{t.V1, t.V2, t.V3} {
			vv := vertex(v)
			vv.Quadric = vv.Quadric.Add(q)
		}
	}

	var faces []*simplify.Face
	vertexFaces := map[*simplify.Vertex][]*simplify.Face{}
	addFace := func(f *simplify.Face) {
		faces = append(faces, f)
		vertexFaces[f.V1] = append(vertexFaces[f.V1], f)
		vertexFaces[f.V2] = append(vertexFaces[f.V2], f)
		vertexFaces[f.V3] = append(vertexFaces[f.V3], f)
	}
	var pairKeys orderedSet[simplify.PairKey]
	pairs := map[simplify.PairKey]*simplify.Pair{}
	for _, t := range triangles {
		v1, v2, v3 := vectorVertex[t.V1], vectorVertex[t.V2], vectorVertex[t.V3]
		addFace(simplify.NewFace(v1, v2, v3))
		for _, e := range [][2]*simplify.Vertex{{v1, v2}, {v2, v3}, {v3, v1}} {
			key := simplify.MakePairKey(e[0], e[1])
			pairKeys.add(key)
			pairs[key] = simplify.NewPair(e[0], e[1])
		}
	}

	queue := &pairQueue{}
	vertexPairs := map[*simplify.Vertex][]*simplify.Pair{}
	for _, key := range pairKeys.items {
		p := pairs[key]
		heap.Push(queue, p)
		vertexPairs[p.A] = append(vertexPairs[p.A], p)
		vertexPairs[p.B] = append(vertexPairs[p.B], p)
	}

	numFaces := len(triangles)
	target := int(float64(numFaces) * factor)
	for numFaces > target && queue.Len() > 0 {
		p := heap.Pop(queue).(*simplify.Pair)
		if p.Removed {
			continue
		}
		p.Removed = true

		var related orderedSet[*simplify.Face]
		for _, fs := range [][]*simplify.Face{vertexFaces[p.A], vertexFaces[p.B]} {
			for _, f := range fs {
				if !f.Removed {
					related.add(f)
				}
			}
		}
		var relatedPairs orderedSet[*simplify.Pair]
		for _, qs := range [][]*simplify.Pair{vertexPairs[p.A], vertexPairs[p.B]} {
			for _, q := range qs {
				if !q.Removed {
					relatedPairs.add(q)
				}
			}
		}

		v := &simplify.Vertex{Vector: p.Vector(), Quadric: p.Quadric()}
		replace := func(u *simplify.Vertex) *simplify.Vertex {
			if u == p.A || u == p.B {
				return v
			}
			return u
		}

		var newFaces []*simplify.Face
		valid := true
		for _, f := range related.items {
			face := simplify.NewFace(replace(f.V1), replace(f.V2), replace(f.V3))
			if face.Degenerate() {
				continue
			}
			// Reject collapses that flip a face.
			if face.Normal().Dot(f.Normal()) < 1e-3 {
				valid = false
				break
			}
			newFaces = append(newFaces, face)
		}
		if !valid {
			continue
		}
		delete(vertexFaces, p.A)
		delete(vertexFaces, p.B)
		for _, f := range related.items {
			f.Removed = true
			numFaces--
		}
		for _, f := range newFaces {
			numFaces++
			addFace(f)
		}

		delete(vertexPairs, p.A)
		delete(vertexPairs, p.B)
		seen := map[simplify.Vector]bool{}
		for _, q := range relatedPairs.items {
			q.Removed = true
			heap.Remove(queue, q.Index)
			a, b := replace(q.A), replace(q.B)
			if b == v {
				a, b = b, a
			}
			if seen[b.Vector] {
				continue
			}
			seen[b.Vector] = true
			np := simplify.NewPair(a, b)
			heap.Push(queue, np)
			vertexPairs[a] = append(vertexPairs[a], np)
			vertexPairs[b] = append(vertexPairs[b], np)
		}
	}

	var result []*simplify.Triangle
	for _, f := range faces {
		if !f.Removed {
			result = append(result, simplify.NewTriangle(f.V1.Vector, f.V2.Vector, f.V3.Vector))
		}
	}
	return result
}

// Simplify reduces the triangle count of each object and material to about factor of the original.
// UVs and normals are dropped. Returns doc itself if factor is not in (0, 1).
func Simplify(doc *obj.Document, factor float64) *obj.Document {
	if factor <= 0 || factor >= 1 {
		return doc
	}
	dst := obj.NewDocument()
	dst.MaterialLibs = doc.MaterialLibs
	dst.Materials = doc.Materials
	vertexMap := map[simplify.Vector]int{}
	vertex := func(v simplify.Vector) int {
		if i, ok := vertexMap[v]; ok {
			return i
		}
		vertexMap[v] = len(dst.Vertexes)
		dst.Vertexes = append(dst.Vertexes, geom.NewVector3(v.X, v.Y, v.Z))
		return vertexMap[v]
	}
	toVector := func(i int) simplify.Vector {
		v := doc.Vertexes[i]
		return simplify.Vector{X: v.X, Y: v.Y, Z: v.Z}
	}

	for _, o := range doc.Objects {
		var materials []string
		triangles := map[string][]*simplify.Triangle{}
		smooth := map[string]string{}
		for _, f := range o.Faces {
			if _, ok := triangles[f.Material]; !ok {
				materials = append(materials, f.Material)
				triangles[f.Material] = nil
			}
			if smooth[f.Material] == "" {
				smooth[f.Material] = f.Smooth
			}
			poly := make([]*geom.Vector3, len(f.Verts))
			for i, v := range f.Verts {
				poly[i] = doc.Vertexes[v]
			}
			for _, t := range geom.Triangulate(poly) {
				triangles[f.Material] = append(triangles[f.Material],
					simplify.NewTriangle(toVector(f.Verts[t[0]]), toVector(f.Verts[t[1]]), toVector(f.Verts[t[2]])))
			}
		}

		do := obj.NewObject(o.Name)
		do.Group = o.Group
		for _, mat := range materials {
			if len(triangles[mat]) == 0 {
				continue
			}
			for _, t := range decimate(triangles[mat], factor) {
				do.Faces = append(do.Faces, &obj.Face{
					Verts:    []int{vertex(t.V1), vertex(t.V2), vertex(t.V3)},
					Material: mat,
					Smooth:   smooth[mat],
				})
			}
		}
		if len(do.Faces) > 0 {
			dst.Objects = append(dst.Objects, do)
		}
	}
	return dst
}
