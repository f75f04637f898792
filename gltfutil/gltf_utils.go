package gltfutil

import (
	"encoding/json"
	"math"

	"github.com/binzume/organconv/geom"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/binary"
	"github.com/qmuntal/gltf/modeler"
)

func Load(path string) (*gltf.Document, error) {
	return gltf.Open(path)
}

func Save(doc *gltf.Document, path string) error {
	return errors.Wrapf(gltf.SaveBinary(doc, path), "save %s", path)
}

func FindNode(doc *gltf.Document, name string) *gltf.Node {
	for _, n := range doc.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// NodeExtra decodes node.extras[key] into v. Returns false if the key is missing.
func NodeExtra(node *gltf.Node, key string, v interface{}) (bool, error) {
	if node == nil || node.Extras == nil {
		return false, nil
	}
	data, err := json.Marshal(node.Extras)
	if err != nil {
		return false, err
	}
	var extras map[string]json.RawMessage
	if err := json.Unmarshal(data, &extras); err != nil {
		return false, err
	}
	raw, ok := extras[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func toVector3(a [3]float32) *geom.Vector3 {
	return geom.NewVector3(geom.Element(a[0]), geom.Element(a[1]), geom.Element(a[2]))
}

// Transform scales all positions and node translations, then applies offset to non-target positions.
func Transform(doc *gltf.Document, scale *geom.Vector3, offset *geom.Vector3) error {
	if scale == nil && offset == nil {
		return nil
	}
	scaleMat := geom.NewMatrix4()
	if scale != nil {
		scaleMat = geom.NewScaleMatrix4(scale.X, scale.Y, scale.Z)
	}
	scaleOffsetMat := scaleMat
	if offset != nil {
		scaleOffsetMat = geom.NewTranslateMatrix4(offset.X, offset.Y, offset.Z).Mul(scaleMat)
	}

	accs := map[uint32]bool{}
	for _, m := range doc.Meshes {
		for _, p := range m.Primitives {
			if a, ok := p.Attributes["POSITION"]; ok {
				accs[a] = false
			}
			for _, t := range p.Targets {
				if a, ok := t["POSITION"]; ok {
					accs[a] = true
				}
			}
		}
	}
	for a, diff := range accs {
		acr := doc.Accessors[a]
		if acr.Sparse != nil {
			return errors.Errorf("accessor %d: sparse accessor is not supported", a)
		}
		if acr.BufferView == nil {
			continue
		}
		pos, err := modeler.ReadPosition(doc, acr, [][3]float32{})
		if err != nil {
			return errors.Wrapf(err, "accessor %d", a)
		}

		acr.Min = []float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
		acr.Max = []float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
		for i := range pos {
			mat := scaleOffsetMat
			if diff {
				mat = scaleMat
			}
			pos[i] = mat.ApplyTo(toVector3(pos[i])).ToFloat32Array()
			for t, v := range pos[i] {
				acr.Min[t] = float32(math.Min(float64(acr.Min[t]), float64(v)))
				acr.Max[t] = float32(math.Max(float64(acr.Max[t]), float64(v)))
			}
		}
		bufferView := doc.BufferViews[*acr.BufferView]
		buffer := doc.Buffers[bufferView.Buffer]
		err = binary.Write(buffer.Data[bufferView.ByteOffset+acr.ByteOffset:], bufferView.ByteStride, pos)
		if err != nil {
			return errors.Wrapf(err, "accessor %d", a)
		}
	}
	for _, node := range doc.Nodes {
		node.Translation = scaleMat.ApplyTo(toVector3(node.Translation)).ToFloat32Array()
	}
	return nil
}
