package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/binzume/organconv/geom"
	"github.com/binzume/organconv/gltfutil"
	"github.com/binzume/organconv/obj"
	"github.com/binzume/organconv/organ"
	"github.com/qmuntal/gltf/modeler"
)

const eps = 1e-6

const liverOBJ = `mtllib liver.mtl
usemtl liver
v 10 0 0
v 12 0 0
v 12 2 0
v 10 2 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

const veinOBJ = `v 0 0 4
v 1 0 4
v 0 1 4
f 1 2 3
`

const liverMTL = `newmtl liver
Kd 0.8 0.2 0.2
map_Kd liver.png
`

func writeFile(t *testing.T, path string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.Bytes())
}

func organFolder(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "liver.obj"), []byte(liverOBJ))
	writeFile(t, filepath.Join(dir, "liver.mtl"), []byte(liverMTL))
	writeFile(t, filepath.Join(dir, "vein.obj"), []byte(veinOBJ))
	writePNG(t, filepath.Join(dir, "liver.png"), 8, 8)
	return dir
}

func near(a, b *geom.Vector3) bool {
	return a.Sub(b).Len() < eps
}

func loadOBJ(t *testing.T, path string) *obj.Document {
	doc, err := obj.Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestFolderToOrgan(t *testing.T) {
	dir := organFolder(t)
	original := map[string]*obj.Document{
		"liver": loadOBJ(t, filepath.Join(dir, "liver.obj")),
		"vein":  loadOBJ(t, filepath.Join(dir, "vein.obj")),
	}

	res, err := NewFolderToOrganConverter(&FolderToOrganOption{}).Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, DefaultOutDir)
	for _, name := range []string{"organ.obj", "organ.mtl", "liver.obj", "liver.mtl", "vein.obj", "organ_metadata.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Error("missing output: ", name)
		}
	}
	if len(res.Parts) != 2 {
		t.Error("parts: ", res.Parts)
	}

	rec, err := organ.Load(res.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Mode != organ.ModeBoth || len(rec.Parts) != 2 {
		t.Fatal("record: ", rec)
	}
	// Aggregate center is the mean of the part pivots.
	body := geom.Mean([]*geom.Vector3{geom.NewVector3(11, 1, 0), geom.NewVector3(1.0/3, 1.0/3, 4)})
	if !near(&rec.BodyOffset, body) {
		t.Error("bodyOffset: ", rec.BodyOffset)
	}

	for name, orig := range original {
		part := loadOBJ(t, filepath.Join(out, name+".obj"))
		if !near(geom.Mean(part.Vertexes), &geom.Vector3{}) {
			t.Error("part is not centered: ", name)
		}
		for i, v := range part.Vertexes {
			if !near(rec.Restore(name, v), orig.Vertexes[i]) {
				t.Errorf("%s vertex %d: %v != %v", name, i, rec.Restore(name, v), orig.Vertexes[i])
			}
		}
	}

	combined := loadOBJ(t, res.Model)
	if len(combined.Vertexes) != 7 || len(combined.Objects) != 2 {
		t.Fatal("combined: ", len(combined.Vertexes), len(combined.Objects))
	}
	if !near(combined.Vertexes[0].Add(&rec.BodyOffset), original["liver"].Vertexes[0]) {
		t.Error("combined model should only be moved by bodyOffset")
	}
	if combined.Materials[0].DiffuseTexture != "../liver.png" {
		t.Error("texture path: ", combined.Materials[0].DiffuseTexture)
	}
}

func TestFolderToOrganModes(t *testing.T) {
	for _, mode := range []organ.Mode{organ.ModeAggregate, organ.ModeParts} {
		for _, pivot := range []organ.Pivot{organ.PivotMedian, organ.PivotBounds} {
			dir := organFolder(t)
			orig := loadOBJ(t, filepath.Join(dir, "liver.obj"))
			res, err := NewFolderToOrganConverter(&FolderToOrganOption{Mode: mode, Pivot: pivot}).Convert(dir, "organ")
			if err != nil {
				t.Fatal(err)
			}
			part := loadOBJ(t, filepath.Join(res.OutDir, "liver.obj"))
			for i, v := range part.Vertexes {
				if !near(res.Offsets.Restore("liver", v), orig.Vertexes[i]) {
					t.Errorf("%s/%s vertex %d: %v", mode, pivot, i, res.Offsets.Restore("liver", v))
				}
			}
			if mode == organ.ModeParts && !res.Offsets.BodyOffset.IsZero() {
				t.Error("bodyOffset should be zero: ", res.Offsets.BodyOffset)
			}
		}
	}
}

func readAll(t *testing.T, dir string) map[string][]byte {
	files := map[string][]byte{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		files[e.Name()] = data
	}
	return files
}

func TestFolderToOrganRerun(t *testing.T) {
	dir := organFolder(t)
	c := NewFolderToOrganConverter(&FolderToOrganOption{GLTF: &OrganToGLTFOption{}})
	res, err := c.Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	first := readAll(t, res.OutDir)

	if _, err := c.Convert(dir, "organ"); err != nil {
		t.Fatal(err)
	}
	second := readAll(t, res.OutDir)
	if len(first) != len(second) {
		t.Fatal("files: ", len(first), len(second))
	}
	for name, data := range first {
		if !bytes.Equal(data, second[name]) {
			t.Error("output changed: ", name)
		}
	}
	if c.Scene().Len() != 2 {
		t.Error("scene should be cleared before import: ", c.Scene().Len())
	}
}

func TestFolderToOrganEmpty(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFolderToOrganConverter(nil).Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Offsets.Parts) != 0 || !res.Offsets.BodyOffset.IsZero() {
		t.Error("record should be empty: ", res.Offsets)
	}
	data, err := os.ReadFile(res.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"parts": {}`) {
		t.Error("metadata: ", string(data))
	}
	if _, err := os.Stat(res.Model); err != nil {
		t.Error(err)
	}
}

func TestFolderToOrganInline(t *testing.T) {
	dir := organFolder(t)
	res, err := NewFolderToOrganConverter(&FolderToOrganOption{Metadata: organ.FormatInline, SkipParts: true}).Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata != "" || len(res.Parts) != 0 {
		t.Error("result: ", res)
	}
	rec, err := organ.Load(res.Model)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"liver", "vein"} {
		if !near(rec.Parts[name], res.Offsets.Parts[name]) {
			t.Error("inline record: ", name)
		}
	}
	if len(loadOBJ(t, res.Model).Vertexes) != 7 {
		t.Error("combined model")
	}
}

func TestFolderToOrganErrors(t *testing.T) {
	dir := t.TempDir()
	c := NewFolderToOrganConverter(nil)
	if _, err := c.Convert(filepath.Join(dir, "missing"), "organ"); err == nil {
		t.Error("missing folder should fail")
	}
	if _, err := c.Convert(dir, ""); err == nil {
		t.Error("empty model name should fail")
	}
	writeFile(t, filepath.Join(dir, "broken.obj"), []byte("v 1 2 x\n"))
	if _, err := c.Convert(dir, "organ"); err == nil {
		t.Error("malformed mesh should fail")
	} else {
		t.Log(err)
	}

	dir = t.TempDir()
	writeFile(t, filepath.Join(dir, "vein.obj"), []byte(veinOBJ))
	writeFile(t, filepath.Join(dir, "inf.obj"), []byte("v inf 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	if _, err := c.Convert(dir, "organ"); err == nil {
		t.Error("non-finite vertex should fail")
	} else {
		t.Log(err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultOutDir, "organ_metadata.json")); err == nil {
		t.Error("metadata should not be written")
	}
}

func TestFolderToOrganDefaultParts(t *testing.T) {
	for _, opt := range []*FolderToOrganOption{nil, {}} {
		dir := organFolder(t)
		res, err := NewFolderToOrganConverter(opt).Convert(dir, "organ")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Parts) != 2 {
			t.Error("parts should be exported by default: ", res.Parts)
		}
	}

	dir := organFolder(t)
	res, err := NewFolderToOrganConverter(&FolderToOrganOption{SkipParts: true}).Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Parts) != 0 {
		t.Error("parts: ", res.Parts)
	}
	if _, err := os.Stat(filepath.Join(res.OutDir, "liver.obj")); err == nil {
		t.Error("liver.obj should not be written")
	}
}

func TestOrganToGLTF(t *testing.T) {
	dir := organFolder(t)
	res, err := NewFolderToOrganConverter(&FolderToOrganOption{
		GLTF: &OrganToGLTFOption{Scale: 2, ForceUnlit: true},
	}).Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := gltfutil.Load(res.GLB)
	if err != nil {
		t.Fatal(err)
	}

	root := gltfutil.FindNode(doc, "organ")
	if root == nil || len(root.Children) != 2 {
		t.Fatal("root node: ", root)
	}
	var rec organ.Offsets
	if ok, err := gltfutil.NodeExtra(root, organ.MetadataName, &rec); !ok || err != nil {
		t.Fatal("extras: ", ok, err)
	}
	if !near(&rec.BodyOffset, &res.Offsets.BodyOffset) {
		t.Error("extras bodyOffset: ", rec.BodyOffset)
	}

	liver := gltfutil.FindNode(doc, "liver")
	if liver == nil || liver.Mesh == nil {
		t.Fatal("liver node")
	}
	want := res.Offsets.Parts["liver"].Scale(2).ToFloat32Array()
	for i := range want {
		if math.Abs(float64(liver.Translation[i]-want[i])) > 1e-4 {
			t.Error("translation: ", liver.Translation, want)
		}
	}

	prim := doc.Meshes[*liver.Mesh].Primitives[0]
	pos, err := modeler.ReadPosition(doc, doc.Accessors[prim.Attributes["POSITION"]], nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pos) != 4 {
		t.Fatal("positions: ", len(pos))
	}
	// 2x2 quad centered at the origin, scaled by 2.
	found := map[[3]float32]bool{}
	for _, p := range pos {
		found[p] = true
	}
	if !found[[3]float32{-2, -2, 0}] || !found[[3]float32{2, 2, 0}] {
		t.Error("positions: ", pos)
	}
	if _, ok := prim.Attributes["TEXCOORD_0"]; !ok {
		t.Error("texcoord should be exported")
	}
	if _, ok := prim.Attributes["NORMAL"]; !ok {
		t.Error("normal should be generated")
	}

	if len(doc.Materials) != 1 || doc.Materials[0].PBRMetallicRoughness.BaseColorTexture == nil {
		t.Fatal("material: ", doc.Materials)
	}
	if len(doc.Images) != 1 || doc.Images[0].MimeType != "image/png" {
		t.Error("images: ", doc.Images)
	}
	if len(doc.ExtensionsUsed) != 1 || doc.ExtensionsUsed[0] != unlitMaterialExt {
		t.Error("extensions: ", doc.ExtensionsUsed)
	}
}

func TestOrganToGLTFNormalTexture(t *testing.T) {
	dir := organFolder(t)
	writeFile(t, filepath.Join(dir, "liver.mtl"), []byte(liverMTL+"map_Bump -bm 0.5 liver_n.png\n"))
	writePNG(t, filepath.Join(dir, "liver_n.png"), 4, 4)
	res, err := NewFolderToOrganConverter(&FolderToOrganOption{GLTF: &OrganToGLTFOption{}}).Convert(dir, "organ")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := gltfutil.Load(res.GLB)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Materials) != 1 {
		t.Fatal("materials: ", doc.Materials)
	}
	mat := doc.Materials[0]
	if mat.NormalTexture == nil || mat.NormalTexture.Index == nil {
		t.Fatal("normal texture should be exported")
	}
	if *mat.NormalTexture.Index == mat.PBRMetallicRoughness.BaseColorTexture.Index {
		t.Error("normal texture shares the base color texture")
	}
	if len(doc.Images) != 2 {
		t.Error("images: ", len(doc.Images))
	}
}

func TestTextureLimit(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "large.png"), 64, 32)
	c := newTextureCache(dir)
	if !c.needsResize("large.png", 16) || c.needsResize("large.png", 64) {
		t.Error("needsResize")
	}
	r, err := c.encodeTexture("large.png", "image/png", 16)
	if err != nil {
		t.Fatal(err)
	}
	conf, _, err := image.DecodeConfig(r)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Width != 16 || conf.Height != 8 {
		t.Error("size: ", conf.Width, conf.Height)
	}
	if c.hasAlpha("large.png") {
		t.Error("opaque texture")
	}
}

func gridOBJ(n int, wave bool) string {
	var b strings.Builder
	b.WriteString("usemtl skin\n")
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			z := 0.0
			if wave {
				z = math.Sin(float64(x + y))
			}
			fmt.Fprintf(&b, "v %d %d %g\n", x, y, z)
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*(n+1) + x + 1
			fmt.Fprintf(&b, "f %d %d %d %d\n", i, i+1, i+n+2, i+n+1)
		}
	}
	return b.String()
}

func TestSimplify(t *testing.T) {
	doc, err := obj.Parse(strings.NewReader(gridOBJ(10, true)), "grid.obj")
	if err != nil {
		t.Fatal(err)
	}
	if Simplify(doc, 1) != doc {
		t.Error("factor 1 should return doc")
	}
	s := Simplify(doc, 0.5)
	if s.FaceCount() == 0 || s.FaceCount() >= 200 {
		t.Error("faces: ", s.FaceCount())
	}
	for _, o := range s.Objects {
		for _, f := range o.Faces {
			if f.Material != "skin" || f.UVs != nil {
				t.Fatal("face: ", f)
			}
		}
	}
	t.Log("faces: ", doc.FaceCount(), " -> ", s.FaceCount())
}

func TestSimplifyDeterministic(t *testing.T) {
	for _, tc := range []struct {
		name string
		n    int
		wave bool
	}{{"wave", 30, true}, {"flat", 20, false}} {
		var first []byte
		for run := 0; run < 10; run++ {
			doc, err := obj.Parse(strings.NewReader(gridOBJ(tc.n, tc.wave)), "grid.obj")
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := obj.Write(Simplify(doc, 0.3), &buf, nil); err != nil {
				t.Fatal(err)
			}
			if run == 0 {
				first = buf.Bytes()
			} else if !bytes.Equal(first, buf.Bytes()) {
				t.Fatalf("%s: run %d differs (%d vs %d bytes)", tc.name, run, buf.Len(), len(first))
			}
		}
	}
}

func TestFolderToOrganRerunSimplify(t *testing.T) {
	dir := organFolder(t)
	writeFile(t, filepath.Join(dir, "lung.obj"), []byte(gridOBJ(12, true)))
	var first map[string][]byte
	for run := 0; run < 3; run++ {
		res, err := NewFolderToOrganConverter(&FolderToOrganOption{SimplifyFactor: 0.4}).Convert(dir, "organ")
		if err != nil {
			t.Fatal(err)
		}
		files := readAll(t, res.OutDir)
		if run == 0 {
			first = files
			continue
		}
		for name, data := range first {
			if !bytes.Equal(data, files[name]) {
				t.Errorf("run %d: output changed: %s", run, name)
			}
		}
	}
}
