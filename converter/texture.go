package converter

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"

	"github.com/blezek/tga"
	_ "github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type textureCache struct {
	srcDir   string
	textures map[string]*textureInfo
}

type textureInfo struct {
	name string
	id   *uint32
	img  image.Image
	err  error
}

func newTextureCache(srcDir string) *textureCache {
	return &textureCache{srcDir: srcDir, textures: map[string]*textureInfo{}}
}

func (c *textureCache) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.srcDir, filepath.FromSlash(name))
}

func (c *textureCache) get(name string) *textureInfo {
	if t, ok := c.textures[name]; ok {
		return t
	}
	t := &textureInfo{name: name}
	c.textures[name] = t
	return t
}

func (c *textureCache) getImage(name string) (image.Image, error) {
	t := c.get(name)
	if t.img != nil || t.err != nil {
		return t.img, t.err
	}

	f, err := os.Open(c.path(t.name))
	if err != nil {
		t.err = err
		return nil, err
	}
	defer f.Close()

	t.img, _, t.err = image.Decode(f)
	if t.err != nil && strings.ToLower(filepath.Ext(t.name)) == ".tga" {
		// retry
		f.Seek(0, io.SeekStart)
		t.img, t.err = tga.Decode(f)
	}
	return t.img, t.err
}

func (c *textureCache) hasAlpha(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if name == "" || ext == ".jpg" || ext == ".jpeg" || ext == ".bmp" {
		return false
	}
	img, err := c.getImage(name)
	if err != nil {
		return false
	}
	switch img.ColorModel() {
	case color.YCbCrModel, color.CMYKModel, color.GrayModel, color.Gray16Model:
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// encodeTexture decodes the texture and encodes it as mime, shrinking it to limit pixels on the
// longer side when limit > 0.
func (c *textureCache) encodeTexture(name, mime string, limit int) (io.Reader, error) {
	img, err := c.getImage(name)
	if err != nil {
		return nil, err
	}
	rect := img.Bounds()

	if limit > 0 && (rect.Dx() > limit || rect.Dy() > limit) {
		scale := float64(limit) / float64(rect.Dx())
		if rect.Dy() > rect.Dx() {
			scale = float64(limit) / float64(rect.Dy())
		}
		w, h := int(float64(rect.Dx())*scale), int(float64(rect.Dy())*scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
		img = dst
	}

	w := new(bytes.Buffer)
	if mime == "image/png" {
		err = png.Encode(w, img)
	} else {
		err = jpeg.Encode(w, img, nil)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (c *textureCache) needsResize(name string, limit int) bool {
	if limit <= 0 {
		return false
	}
	f, err := os.Open(c.path(name))
	if err != nil {
		return false
	}
	defer f.Close()
	conf, _, err := image.DecodeConfig(f)
	return err != nil || conf.Width > limit || conf.Height > limit
}

// addTexture embeds the texture into doc once and returns its texture index.
func (c *textureCache) addTexture(doc *gltf.Document, name string, limit int) (*uint32, error) {
	t := c.get(name)
	if t.id != nil {
		return t.id, nil
	}
	ext := strings.ToLower(filepath.Ext(name))

	var mimeType string
	encode := c.needsResize(name, limit)
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	} else if ext == ".png" {
		mimeType = "image/png"
	} else {
		mimeType = "image/png"
		encode = true
	}

	var r io.Reader
	if encode {
		r2, err := c.encodeTexture(name, mimeType, limit)
		if err != nil {
			return nil, errors.Wrapf(err, "texture %s", name)
		}
		r = r2
	} else {
		f, err := os.Open(c.path(name))
		if err != nil {
			return nil, errors.Wrapf(err, "texture %s", name)
		}
		defer f.Close()
		r = f
	}
	img, err := modeler.WriteImage(doc, filepath.Base(name), mimeType, r)
	if err != nil {
		return nil, err
	}
	doc.Buffers[0].ByteLength = uint32(len(doc.Buffers[0].Data)) // avoid AddImage bug
	doc.Textures = append(doc.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(img)})

	t.id = gltf.Index(uint32(len(doc.Textures)) - 1)
	return t.id, nil
}
