package obj

import "github.com/binzume/organconv/geom"

// Transform positions. Normals are not touched.
func (doc *Document) Transform(transform func(v *geom.Vector3)) {
	for _, v := range doc.Vertexes {
		transform(v)
	}
}

func (doc *Document) Translate(d *geom.Vector3) {
	doc.Transform(func(v *geom.Vector3) {
		v.X += d.X
		v.Y += d.Y
		v.Z += d.Z
	})
}

// Centroid returns the mean of all positions.
func (doc *Document) Centroid() *geom.Vector3 {
	return geom.Mean(doc.Vertexes)
}

func (doc *Document) Bounds() *geom.Box3 {
	return geom.Bounds(doc.Vertexes)
}

func shiftIndices(src []int, offset int) []int {
	if src == nil {
		return nil
	}
	dst := make([]int, len(src))
	for i, v := range src {
		if v < 0 {
			dst[i] = v
		} else {
			dst[i] = v + offset
		}
	}
	return dst
}

// Append copies the geometry, objects and materials of src into doc.
// Materials already present in doc (by name) are kept.
func (doc *Document) Append(src *Document) {
	nv, nt, nn := len(doc.Vertexes), len(doc.UVs), len(doc.Normals)
	for _, v := range src.Vertexes {
		c := *v
		doc.Vertexes = append(doc.Vertexes, &c)
	}
	for _, uv := range src.UVs {
		c := *uv
		doc.UVs = append(doc.UVs, &c)
	}
	for _, n := range src.Normals {
		c := *n
		doc.Normals = append(doc.Normals, &c)
	}
	for _, o := range src.Objects {
		obj := &Object{Name: o.Name, Group: o.Group}
		for _, f := range o.Faces {
			obj.Faces = append(obj.Faces, &Face{
				Verts:    shiftIndices(f.Verts, nv),
				UVs:      shiftIndices(f.UVs, nt),
				Normals:  shiftIndices(f.Normals, nn),
				Material: f.Material,
				Smooth:   f.Smooth,
			})
		}
		doc.Objects = append(doc.Objects, obj)
	}
	for _, m := range src.Materials {
		if doc.GetMaterial(m.Name) == nil {
			doc.Materials = append(doc.Materials, m.Clone())
		}
	}
	for _, lib := range src.MaterialLibs {
		found := false
		for _, l := range doc.MaterialLibs {
			found = found || l == lib
		}
		if !found {
			doc.MaterialLibs = append(doc.MaterialLibs, lib)
		}
	}
}

func (doc *Document) Clone() *Document {
	c := NewDocument()
	c.Append(doc)
	return c
}

// Merge concatenates documents in order.
func Merge(docs ...*Document) *Document {
	merged := NewDocument()
	for _, d := range docs {
		merged.Append(d)
	}
	return merged
}

func (m *Material) Clone() *Material {
	c := *m
	vec := func(v *geom.Vector3) *geom.Vector3 {
		if v == nil {
			return nil
		}
		cv := *v
		return &cv
	}
	c.Ambient, c.Diffuse, c.Specular, c.Emissive = vec(m.Ambient), vec(m.Diffuse), vec(m.Specular), vec(m.Emissive)
	return &c
}

// SmoothNormals returns one area weighted normal per position.
func (doc *Document) SmoothNormals() []geom.Vector3 {
	normals := make([]geom.Vector3, len(doc.Vertexes))
	for _, o := range doc.Objects {
		for _, f := range o.Faces {
			n := len(f.Verts)
			for i, v := range f.Verts {
				p := doc.Vertexes[v]
				v1 := doc.Vertexes[f.Verts[(i+1)%n]].Sub(p)
				v2 := doc.Vertexes[f.Verts[(i+n-1)%n]].Sub(p)
				normals[v] = *normals[v].Add(v1.Cross(v2))
			}
		}
	}
	for i := range normals {
		normals[i].Normalize()
	}
	return normals
}

// RenameMaterial renames a material and the faces that use it.
func (doc *Document) RenameMaterial(name, newName string) {
	for _, m := range doc.Materials {
		if m.Name == name {
			m.Name = newName
		}
	}
	for _, o := range doc.Objects {
		for _, f := range o.Faces {
			if f.Material == name {
				f.Material = newName
			}
		}
	}
}

func equalVector(a, b *geom.Vector3) bool {
	return a == b || a != nil && b != nil && *a == *b
}

func equalFloat(a, b *float64) bool {
	return a == b || a != nil && b != nil && *a == *b
}

// Equal reports whether both materials have the same name and definition.
func (m *Material) Equal(o *Material) bool {
	return m.Name == o.Name &&
		equalVector(m.Ambient, o.Ambient) && equalVector(m.Diffuse, o.Diffuse) &&
		equalVector(m.Specular, o.Specular) && equalVector(m.Emissive, o.Emissive) &&
		equalFloat(m.Shininess, o.Shininess) && equalFloat(m.IOR, o.IOR) && equalFloat(m.Dissolve, o.Dissolve) &&
		(m.Illum == o.Illum || m.Illum != nil && o.Illum != nil && *m.Illum == *o.Illum) &&
		m.DiffuseTexture == o.DiffuseTexture && m.BumpTexture == o.BumpTexture && m.AlphaTexture == o.AlphaTexture
}
