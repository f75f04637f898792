package geom

// Mean returns the arithmetic mean of points, or the zero vector when points is empty.
func Mean(points []*Vector3) *Vector3 {
	sum := &Vector3{}
	if len(points) == 0 {
		return sum
	}
	for _, p := range points {
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	return sum.Scale(1 / Element(len(points)))
}

func Bounds(points []*Vector3) *Box3 {
	b := NewBox3()
	for _, p := range points {
		b.Expand(p)
	}
	return b
}

func IsInTriangle(p, a, b, c *Vector3) bool {
	ab, bc, ca := b.Sub(a), c.Sub(b), a.Sub(c)
	c1, c2, c3 := ab.Cross(p.Sub(a)), bc.Cross(p.Sub(b)), ca.Cross(p.Sub(c))
	return c1.Dot(c2) > 0 && c2.Dot(c3) > 0 && c3.Dot(c1) > 0
}

// Triangulate splits a planar polygon into triangles by ear clipping.
// Returned triangles index into poly.
func Triangulate(poly []*Vector3) [][3]int {
	var dst [][3]int
	if len(poly) < 3 {
		return dst
	}
	if len(poly) == 3 {
		return append(dst, [3]int{0, 1, 2})
	}
	n := &Vector3{}
	ii := make([]int, len(poly))
	for i := range poly {
		ii[i] = i
		v0 := poly[(i+len(poly)-1)%len(poly)]
		v1 := poly[i]
		v2 := poly[(i+1)%len(poly)]
		n = n.Add(v2.Sub(v1).Cross(v0.Sub(v1)))
	}
	n = n.Normalize()

	for len(ii) >= 3 {
		found := false
		count := len(ii)
		for i := 0; i < count; i++ {
			i0, i1, i2 := ii[(i+count-1)%count], ii[i], ii[(i+1)%count]
			v0, v1, v2 := poly[i0], poly[i1], poly[i2]
			if v2.Sub(v1).Cross(v0.Sub(v1)).Dot(n) < 0 {
				continue
			}
			ear := true
			for _, j := range ii {
				if j != i0 && j != i1 && j != i2 && IsInTriangle(poly[j], v0, v1, v2) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			dst = append(dst, [3]int{i0, i1, i2})
			ii = append(ii[:i:i], ii[i+1:]...)
			found = true
			break
		}
		if !found {
			// self-intersecting polygon: fall back to a fan.
			for i := 1; i < len(ii)-1; i++ {
				dst = append(dst, [3]int{ii[0], ii[i], ii[i+1]})
			}
			break
		}
	}
	return dst
}
