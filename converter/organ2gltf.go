package converter

import (
	"math"

	"github.com/binzume/organconv/geom"
	"github.com/binzume/organconv/gltfutil"
	"github.com/binzume/organconv/logging"
	"github.com/binzume/organconv/obj"
	"github.com/binzume/organconv/organ"
	"github.com/binzume/organconv/scene"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const unlitMaterialExt = "KHR_materials_unlit"

type OrganToGLTFOption struct {
	Name       string
	Scale      float64 // Default: 1
	ForceUnlit bool

	// TextureResolutionLimit shrinks larger textures. 0: unlimited
	TextureResolutionLimit int
}

type organToGltf struct {
	*OrganToGLTFOption
	*gltf.Document
	materialMap map[string]uint32
}

func NewOrganToGLTFConverter(options *OrganToGLTFOption) *organToGltf {
	if options == nil {
		options = &OrganToGLTFOption{}
	}
	if options.Scale == 0 {
		options.Scale = 1
	}
	if options.Name == "" {
		options.Name = "organ"
	}
	return &organToGltf{
		OrganToGLTFOption: options,
		Document:          gltf.NewDocument(),
		materialMap:       map[string]uint32{},
	}
}

type vertexKey struct {
	v, uv, n int
}

func (c *organToGltf) convertMaterial(mat *obj.Material, textures *textureCache) *gltf.Material {
	var mf float32 = 0
	var rf float32 = 0.9
	if mat.Shininess != nil {
		rf = float32(1 - math.Sqrt(math.Min(math.Max(*mat.Shininess/1000, 0), 1)))
	}
	col := [4]float32{1, 1, 1, float32(mat.Opacity())}
	if mat.Diffuse != nil {
		col[0], col[1], col[2] = float32(mat.Diffuse.X), float32(mat.Diffuse.Y), float32(mat.Diffuse.Z)
	}
	mm := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &col,
			RoughnessFactor: &rf,
			MetallicFactor:  &mf,
		},
	}
	if mat.Emissive != nil {
		mm.EmissiveFactor = mat.Emissive.ToFloat32Array()
	}
	texture := obj.TexturePath(mat.DiffuseTexture)
	if mat.Opacity() < 0.99 || textures.hasAlpha(texture) {
		mm.AlphaMode = gltf.AlphaBlend
	}
	if c.ForceUnlit {
		mm.Extensions = map[string]interface{}{unlitMaterialExt: map[string]string{}}
	}
	if texture != "" {
		if tex, err := textures.addTexture(c.Document, texture, c.TextureResolutionLimit); err == nil {
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{
				Index: *tex,
			}
		} else {
			logging.Warnf("Texture read error: %v", err)
		}
	}
	if bump := obj.TexturePath(mat.BumpTexture); bump != "" {
		if tex, err := textures.addTexture(c.Document, bump, c.TextureResolutionLimit); err == nil {
			mm.NormalTexture = &gltf.NormalTexture{
				Index: tex,
			}
		} else {
			logging.Warnf("Texture read error: %v", err)
		}
	}
	return mm
}

func (c *organToGltf) material(name string) *uint32 {
	if id, ok := c.materialMap[name]; ok {
		return gltf.Index(id)
	}
	return nil
}

// convertPart builds one mesh with a primitive per material.
func (c *organToGltf) convertPart(doc *obj.Document, name string) *gltf.Mesh {
	var smooth []geom.Vector3
	var positions, normals [][3]float32
	var texcoords [][2]float32
	useTexcoord := false
	vertexMap := map[vertexKey]uint32{}
	var materials []string
	indices := map[string][]uint32{}

	vertex := func(f *obj.Face, i int) uint32 {
		key := vertexKey{v: f.Verts[i], uv: -1, n: -1}
		if f.UVs != nil {
			key.uv = f.UVs[i]
		}
		if f.Normals != nil {
			key.n = f.Normals[i]
		}
		if idx, ok := vertexMap[key]; ok {
			return idx
		}
		idx := uint32(len(positions))
		vertexMap[key] = idx
		positions = append(positions, doc.Vertexes[key.v].ToFloat32Array())
		var n *geom.Vector3
		if key.n >= 0 {
			n = doc.Normals[key.n]
		} else {
			if smooth == nil {
				smooth = doc.SmoothNormals()
			}
			n = &smooth[key.v]
		}
		normals = append(normals, n.ToFloat32Array())
		var uv [2]float32
		if key.uv >= 0 {
			useTexcoord = true
			uv = [2]float32{float32(doc.UVs[key.uv].X), float32(1 - doc.UVs[key.uv].Y)}
		}
		texcoords = append(texcoords, uv)
		return idx
	}

	for _, o := range doc.Objects {
		for _, f := range o.Faces {
			poly := make([]*geom.Vector3, len(f.Verts))
			for i, v := range f.Verts {
				poly[i] = doc.Vertexes[v]
			}
			if _, exists := indices[f.Material]; !exists {
				materials = append(materials, f.Material)
				indices[f.Material] = []uint32{}
			}
			for _, tri := range geom.Triangulate(poly) {
				indices[f.Material] = append(indices[f.Material], vertex(f, tri[0]), vertex(f, tri[1]), vertex(f, tri[2]))
			}
		}
	}

	mesh := &gltf.Mesh{Name: name}
	if len(positions) == 0 {
		return mesh
	}
	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(c.Document, positions),
		"NORMAL":   modeler.WriteNormal(c.Document, normals),
	}
	if useTexcoord {
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(c.Document, texcoords)
	}
	for _, mat := range materials {
		if len(indices[mat]) == 0 {
			continue
		}
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(c.Document, indices[mat])),
			Attributes: attributes,
			Material:   c.material(mat),
		})
	}
	return mesh
}

// Convert builds a glTF document with one node per part under a root node.
// Parts centered on their own pivot are placed back with their offset as node translation,
// so the document shows the same layout as the combined model.
func (c *organToGltf) Convert(s *scene.Scene, offsets *organ.Offsets, textureDir string) (*gltf.Document, error) {
	c.Asset.Generator = "organconv"
	names := s.PartNames()
	docs, err := s.PartDocuments(names, textureDir)
	if err != nil {
		return nil, err
	}
	merged := obj.Merge(docs...)

	textures := newTextureCache(textureDir)
	useUnlit := false
	for _, mat := range merged.Materials {
		c.materialMap[mat.Name] = uint32(len(c.Materials))
		mm := c.convertMaterial(mat, textures)
		useUnlit = useUnlit || mm.Extensions[unlitMaterialExt] != nil
		c.Materials = append(c.Materials, mm)
	}
	if useUnlit {
		c.ExtensionsUsed = append(c.ExtensionsUsed, unlitMaterialExt)
	}
	if len(c.Textures) > 0 {
		c.Samplers = []*gltf.Sampler{{}}
	}

	root := &gltf.Node{Name: c.Name}
	if offsets != nil {
		root.Extras = map[string]interface{}{organ.MetadataName: offsets}
	}
	c.Nodes = append(c.Nodes, root)
	c.Scenes[0].Nodes = append(c.Scenes[0].Nodes, 0)

	for i, name := range names {
		node := &gltf.Node{Name: name}
		if offsets != nil && offsets.Mode.Parts() {
			if d, ok := offsets.Parts[name]; ok {
				node.Translation = d.ToFloat32Array()
			}
		}
		mesh := c.convertPart(docs[i], name)
		if len(mesh.Primitives) > 0 {
			node.Mesh = gltf.Index(uint32(len(c.Meshes)))
			c.Meshes = append(c.Meshes, mesh)
		}
		root.Children = append(root.Children, uint32(len(c.Nodes)))
		c.Nodes = append(c.Nodes, node)
	}

	if c.Scale != 1 {
		if err := gltfutil.Transform(c.Document, geom.NewVector3(c.Scale, c.Scale, c.Scale), nil); err != nil {
			return nil, err
		}
	}
	return c.Document, nil
}
