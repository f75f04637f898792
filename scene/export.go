package scene

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/organconv/logging"
	"github.com/binzume/organconv/obj"
	"github.com/pkg/errors"
)

type ExportOption struct {
	// Header lines are written as comments at the top of the OBJ file.
	Header []string
	// Precision of coordinates. 0: shortest representation that round-trips.
	Precision int
}

func writeFile(path string, write func(w io.Writer) error) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	err = write(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "write %s", path)
}

// relocateTextures rewrites relative texture paths of materials loaded from srcDir so they
// resolve from outDir.
func relocateTextures(materials []*obj.Material, srcDir, outDir string) {
	relocate := func(statement string) string {
		file := obj.TexturePath(statement)
		if file == "" || filepath.IsAbs(file) {
			return statement
		}
		rel, err := filepath.Rel(outDir, filepath.Join(srcDir, filepath.FromSlash(file)))
		if err != nil {
			return statement
		}
		return obj.ReplaceTexturePath(statement, filepath.ToSlash(rel))
	}
	for _, m := range materials {
		m.DiffuseTexture = relocate(m.DiffuseTexture)
		m.BumpTexture = relocate(m.BumpTexture)
		m.AlphaTexture = relocate(m.AlphaTexture)
	}
}

// uniqueMaterialName returns the first of name.001, name.002... that is not taken.
func uniqueMaterialName(name string, taken func(string) bool) string {
	for i := 1; ; i++ {
		n := fmt.Sprintf("%s.%03d", name, i)
		if !taken(n) {
			return n
		}
	}
}

// PartDocuments returns copies of the named parts with texture paths relative to outDir.
// A material whose name is already used by a different definition in an earlier part is
// renamed, and the faces of its part follow.
func (s *Scene) PartDocuments(names []string, outDir string) ([]*obj.Document, error) {
	used := map[string]*obj.Material{}
	docs := make([]*obj.Document, 0, len(names))
	for _, name := range names {
		p, err := s.part(name)
		if err != nil {
			return nil, err
		}
		c := p.Doc.Clone()
		relocateTextures(c.Materials, p.Dir(), outDir)
		for _, m := range c.Materials {
			if prev := used[m.Name]; prev != nil && !prev.Equal(m) {
				renamed := uniqueMaterialName(m.Name, func(n string) bool {
					return used[n] != nil || c.GetMaterial(n) != nil
				})
				logging.Warnf("material %s of %s renamed to %s", m.Name, name, renamed)
				c.RenameMaterial(m.Name, renamed)
			}
			if used[m.Name] == nil {
				used[m.Name] = m
			}
		}
		docs = append(docs, c)
	}
	return docs, nil
}

// Merged returns a copy of the named parts as one document, with texture paths relative to outDir.
func (s *Scene) Merged(names []string, outDir string) (*obj.Document, error) {
	docs, err := s.PartDocuments(names, outDir)
	if err != nil {
		return nil, err
	}
	doc := obj.Merge(docs...)
	doc.MaterialLibs = nil
	return doc, nil
}

// ExportMesh writes the named parts into one OBJ file and their materials into a MTL file
// next to it.
func (s *Scene) ExportMesh(path string, names []string, opts *ExportOption) error {
	doc, err := s.Merged(names, filepath.Dir(path))
	if err != nil {
		return err
	}
	return s.WriteMesh(path, doc, opts)
}

// WriteMesh writes doc as an OBJ file, with a MTL file next to it when doc has materials.
// Texture paths must already be relative to the directory of path.
func (s *Scene) WriteMesh(path string, doc *obj.Document, opts *ExportOption) error {
	if opts == nil {
		opts = &ExportOption{}
	}
	wopts := &obj.WriteOption{Header: opts.Header, Precision: opts.Precision, Encoding: s.Encoding}
	if len(doc.Materials) > 0 {
		mtlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
		wopts.MaterialLib = filepath.Base(mtlPath)
		err := writeFile(mtlPath, func(w io.Writer) error {
			return obj.WriteMTL(doc.Materials, w, &obj.WriteOption{Precision: opts.Precision, Encoding: s.Encoding})
		})
		if err != nil {
			return err
		}
	}
	return writeFile(path, func(w io.Writer) error {
		return obj.Write(doc, w, wopts)
	})
}
