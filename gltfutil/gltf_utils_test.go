package gltfutil

import (
	"path/filepath"
	"testing"

	"github.com/binzume/organconv/geom"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func testDocument() *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	doc.Meshes = []*gltf.Mesh{{Name: "tri", Primitives: []*gltf.Primitive{{
		Indices:    gltf.Index(modeler.WriteIndices(doc, []uint16{0, 1, 2})),
		Attributes: map[string]uint32{"POSITION": pos},
	}}}}
	doc.Nodes = []*gltf.Node{{
		Name:        "tri",
		Mesh:        gltf.Index(0),
		Translation: [3]float32{1, 2, 3},
		Extras:      map[string]interface{}{"offset": map[string]float64{"x": 1.5}},
	}}
	doc.Scenes[0].Nodes = []uint32{0}
	return doc
}

func TestTransform(t *testing.T) {
	doc := testDocument()
	err := Transform(doc, geom.NewVector3(2, 2, 2), geom.NewVector3(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	acr := doc.Accessors[doc.Meshes[0].Primitives[0].Attributes["POSITION"]]
	pos, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pos[1] != [3]float32{2, 0, 1} || pos[2] != [3]float32{0, 2, 1} {
		t.Error("positions: ", pos)
	}
	if acr.Max[0] != 2 || acr.Min[2] != 1 {
		t.Error("bounds: ", acr.Min, acr.Max)
	}
	if doc.Nodes[0].Translation != [3]float32{2, 4, 6} {
		t.Error("translation: ", doc.Nodes[0].Translation)
	}

	if err := Transform(doc, nil, nil); err != nil {
		t.Error(err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.glb")
	if err := Save(testDocument(), path); err != nil {
		t.Fatal(err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	node := FindNode(doc, "tri")
	if node == nil {
		t.Fatal("node not found")
	}
	if FindNode(doc, "none") != nil {
		t.Error("unknown node")
	}

	var offset struct{ X float64 }
	if ok, err := NodeExtra(node, "offset", &offset); !ok || err != nil || offset.X != 1.5 {
		t.Error("extras: ", ok, err, offset)
	}
	if ok, _ := NodeExtra(node, "missing", &offset); ok {
		t.Error("missing key")
	}
}
