// Package scene holds the parts of one run and implements the host operations the
// pipeline needs: clear, import, export, pivot and translation.
package scene

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/binzume/organconv/geom"
	"github.com/binzume/organconv/logging"
	"github.com/binzume/organconv/obj"
	"github.com/binzume/organconv/organ"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

type Part struct {
	Name   string
	Source string
	Doc    *obj.Document
}

// Dir returns the directory relative texture paths of the part are resolved against.
func (p *Part) Dir() string {
	return filepath.Dir(p.Source)
}

type Scene struct {
	parts []*Part

	// Encoding of imported and exported files. nil means UTF-8.
	Encoding encoding.Encoding
}

var _ organ.Scene = (*Scene)(nil)

func New() *Scene {
	return &Scene{}
}

func (s *Scene) Len() int {
	return len(s.parts)
}

// Clear removes all parts. Clearing an empty scene does nothing.
func (s *Scene) Clear() {
	if s.Len() == 0 {
		return
	}
	logging.Debugf("clear %d parts", s.Len())
	s.parts = nil
}

func (s *Scene) Parts() []*Part {
	return s.parts
}

func (s *Scene) PartNames() []string {
	names := make([]string, len(s.parts))
	for i, p := range s.parts {
		names[i] = p.Name
	}
	return names
}

func (s *Scene) Part(name string) *Part {
	for _, p := range s.parts {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Scene) part(name string) (*Part, error) {
	if p := s.Part(name); p != nil {
		return p, nil
	}
	return nil, errors.Errorf("no part %q in scene", name)
}

// PartName derives the part name from a file name.
func PartName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func nameObjects(name string, doc *obj.Document) {
	for i, o := range doc.Objects {
		switch {
		case len(doc.Objects) == 1, i == 0 && o.Name == "":
			o.Name = name
			o.Group = false
		case o.Name == "":
			o.Name = name + "." + strconv.Itoa(i)
		default:
			o.Name = name + "." + o.Name
		}
	}
}

// Add puts doc into the scene. Objects are renamed after the part. An existing part with the
// same name is replaced.
func (s *Scene) Add(name, source string, doc *obj.Document) *Part {
	nameObjects(name, doc)

	part := &Part{Name: name, Source: source, Doc: doc}
	for i, p := range s.parts {
		if p.Name == name {
			logging.Warnf("part %s from %s replaces %s", name, source, p.Source)
			s.parts[i] = part
			return part
		}
	}
	s.parts = append(s.parts, part)
	return part
}

func (s *Scene) ImportMesh(path string) (*Part, error) {
	doc, err := obj.Load(path, s.Encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", path)
	}
	logging.Debugf("import %s: %d vertexes, %d faces", path, len(doc.Vertexes), doc.FaceCount())
	return s.Add(PartName(path), path, doc), nil
}

// ListMeshFiles returns the *.obj files of folder in lexical order.
func ListMeshFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "read folder")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".obj" {
			continue
		}
		files = append(files, filepath.Join(folder, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ImportFolder imports every mesh file of folder.
func (s *Scene) ImportFolder(folder string) error {
	files, err := ListMeshFiles(folder)
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := s.ImportMesh(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) Pivot(name string, pivot organ.Pivot) (*geom.Vector3, error) {
	p, err := s.part(name)
	if err != nil {
		return nil, err
	}
	return pivot.Of(p.Doc.Vertexes), nil
}

func (s *Scene) Translate(name string, d *geom.Vector3) error {
	p, err := s.part(name)
	if err != nil {
		return err
	}
	p.Doc.Translate(d)
	return nil
}

type partSummary struct {
	Name     string
	Source   string
	Vertexes int
	Faces    int
	Objects  []string
	Center   geom.Vector3
	Size     geom.Vector3
}

// Dump writes a summary of the scene for debugging.
func (s *Scene) Dump(w io.Writer) {
	conf := spew.NewDefaultConfig()
	conf.DisableCapacities = true
	conf.DisablePointerAddresses = true
	summaries := make([]partSummary, len(s.parts))
	for i, p := range s.parts {
		b := p.Doc.Bounds()
		summaries[i] = partSummary{
			Name:     p.Name,
			Source:   p.Source,
			Vertexes: len(p.Doc.Vertexes),
			Faces:    p.Doc.FaceCount(),
			Center:   *b.Center(),
			Size:     *b.Size(),
		}
		for _, o := range p.Doc.Objects {
			summaries[i].Objects = append(summaries[i].Objects, o.Name)
		}
	}
	conf.Fdump(w, summaries)
}
