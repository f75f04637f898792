// Package obj reads and writes Wavefront OBJ and MTL files.
package obj

import "github.com/binzume/organconv/geom"

type Material struct {
	Name string

	Ambient   *geom.Vector3
	Diffuse   *geom.Vector3
	Specular  *geom.Vector3
	Emissive  *geom.Vector3
	Shininess *float64
	IOR       *float64
	Dissolve  *float64
	Illum     *int

	// Texture statements keep their options, e.g. "-bm 0.5 normal.png".
	DiffuseTexture string
	BumpTexture    string
	AlphaTexture   string
}

func NewMaterial(name string) *Material {
	return &Material{Name: name}
}

// Opacity returns d (or 1-Tr), 1 when unset.
func (m *Material) Opacity() float64 {
	if m.Dissolve == nil {
		return 1
	}
	return *m.Dissolve
}

// Face indices are 0-based. UVs and Normals are nil or have len(Verts) entries; -1 marks
// a corner without that attribute.
type Face struct {
	Verts    []int
	UVs      []int
	Normals  []int
	Material string
	Smooth   string
}

type Object struct {
	Name string
	// Group is true for objects started by a "g" statement.
	Group bool
	Faces []*Face
}

func NewObject(name string) *Object {
	return &Object{Name: name}
}

type Document struct {
	MaterialLibs []string
	Vertexes     []*geom.Vector3
	UVs          []*geom.Vector2
	Normals      []*geom.Vector3
	Objects      []*Object
	Materials    []*Material
}

func NewDocument() *Document {
	return &Document{}
}

func (doc *Document) GetMaterial(name string) *Material {
	for _, m := range doc.Materials {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (doc *Document) FaceCount() int {
	n := 0
	for _, o := range doc.Objects {
		n += len(o.Faces)
	}
	return n
}
