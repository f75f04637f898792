package obj

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/binzume/organconv/geom"
	"github.com/binzume/organconv/logging"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const maxLineLength = 16 * 1024 * 1024

// Parser for obj file.
type Parser struct {
	name string
	r    io.Reader
	line int

	// Encoding of the file. nil means UTF-8.
	Encoding encoding.Encoding
	// Open resolves mtllib references. nil disables material loading.
	Open func(name string) (io.ReadCloser, error)

	doc      *Document
	current  *Object
	material string
	smooth   string
	skipped  map[string]bool
}

// NewParser returns new parser.
func NewParser(r io.Reader, path string) *Parser {
	p := &Parser{
		name:    path,
		r:       r,
		skipped: map[string]bool{},
	}
	if path != "" {
		p.Open = func(name string) (io.ReadCloser, error) {
			return os.Open(filepath.Join(filepath.Dir(path), filepath.FromSlash(name)))
		}
	}
	return p
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Errorf("line %d: "+format, append([]interface{}{p.line}, args...)...)
}

// parseFloat accepts finite numbers only.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

func (p *Parser) readFloats(fields []string, min int) ([]float64, error) {
	if len(fields) < min {
		return nil, p.errorf("expected %d values, got %d", min, len(fields))
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return nil, p.errorf("invalid number %q", f)
		}
		values[i] = v
	}
	return values, nil
}

// index converts a 1-based (or negative, relative) OBJ index into a 0-based one.
func (p *Parser) index(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, p.errorf("invalid index %q", s)
	}
	if i < 0 {
		i += n
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, p.errorf("index %s out of range (%d)", s, n)
	}
	return i, nil
}

func (p *Parser) object() *Object {
	if p.current == nil {
		p.current = NewObject("")
		p.doc.Objects = append(p.doc.Objects, p.current)
	}
	return p.current
}

func (p *Parser) readFace(fields []string) (*Face, error) {
	if len(fields) < 3 {
		return nil, p.errorf("face with %d vertexes", len(fields))
	}
	f := &Face{
		Verts:    make([]int, len(fields)),
		Material: p.material,
		Smooth:   p.smooth,
	}
	for i, field := range fields {
		idx := strings.Split(field, "/")
		v, err := p.index(idx[0], len(p.doc.Vertexes))
		if err != nil {
			return nil, err
		}
		f.Verts[i] = v
		if len(idx) > 1 && idx[1] != "" {
			if f.UVs == nil {
				f.UVs = newIndexList(len(fields))
			}
			if f.UVs[i], err = p.index(idx[1], len(p.doc.UVs)); err != nil {
				return nil, err
			}
		}
		if len(idx) > 2 && idx[2] != "" {
			if f.Normals == nil {
				f.Normals = newIndexList(len(fields))
			}
			if f.Normals[i], err = p.index(idx[2], len(p.doc.Normals)); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func newIndexList(n int) []int {
	l := make([]int, n)
	for i := range l {
		l[i] = -1
	}
	return l
}

func (p *Parser) statement(keyword string, fields []string, rest string) error {
	switch keyword {
	case "v":
		v, err := p.readFloats(fields, 3)
		if err != nil {
			return err
		}
		p.doc.Vertexes = append(p.doc.Vertexes, geom.NewVector3(v[0], v[1], v[2]))
	case "vt":
		v, err := p.readFloats(fields, 1)
		if err != nil {
			return err
		}
		uv := &geom.Vector2{X: v[0]}
		if len(v) > 1 {
			uv.Y = v[1]
		}
		p.doc.UVs = append(p.doc.UVs, uv)
	case "vn":
		v, err := p.readFloats(fields, 3)
		if err != nil {
			return err
		}
		p.doc.Normals = append(p.doc.Normals, geom.NewVector3(v[0], v[1], v[2]))
	case "f":
		f, err := p.readFace(fields)
		if err != nil {
			return err
		}
		obj := p.object()
		obj.Faces = append(obj.Faces, f)
	case "o", "g":
		p.current = &Object{Name: rest, Group: keyword == "g"}
		p.doc.Objects = append(p.doc.Objects, p.current)
	case "usemtl":
		p.material = rest
	case "s":
		p.smooth = rest
	case "mtllib":
		p.doc.MaterialLibs = append(p.doc.MaterialLibs, fields...)
	default:
		if !p.skipped[keyword] {
			p.skipped[keyword] = true
			logging.Debugf("%s: skip %s", p.name, keyword)
		}
	}
	return nil
}

func (p *Parser) loadMaterials() {
	for _, lib := range p.doc.MaterialLibs {
		r, err := p.Open(lib)
		if err != nil {
			logging.Warnf("%s: material library %s: %v", p.name, lib, err)
			continue
		}
		mp := NewMTLParser(r, lib)
		mp.Encoding = p.Encoding
		mats, err := mp.Parse()
		r.Close()
		if err != nil {
			logging.Warnf("%s: %v", p.name, err)
		}
		for _, m := range mats {
			if p.doc.GetMaterial(m.Name) == nil {
				p.doc.Materials = append(p.doc.Materials, m)
			}
		}
	}
}

func (p *Parser) Parse() (*Document, error) {
	p.doc = NewDocument()
	var r io.Reader = p.r
	if p.Encoding != nil {
		r = transform.NewReader(r, p.Encoding.NewDecoder())
	}

	err := scanLines(r, func(line int, keyword string, fields []string, rest string) error {
		p.line = line
		return p.statement(keyword, fields, rest)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s", p.name)
	}

	// "o" followed by "g" leaves an empty object behind.
	objects := p.doc.Objects[:0]
	for _, o := range p.doc.Objects {
		if len(o.Faces) > 0 {
			objects = append(objects, o)
		}
	}
	p.doc.Objects = objects

	if p.Open != nil {
		p.loadMaterials()
	}
	return p.doc, nil
}

// scanLines calls fn for every statement, joining "\" continued lines and dropping comments.
func scanLines(r io.Reader, fn func(line int, keyword string, fields []string, rest string) error) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineNo := 0
	start := 0
	var pending string
	for s.Scan() {
		lineNo++
		text := s.Text()
		if lineNo == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if pending == "" {
			start = lineNo
		}
		if strings.HasSuffix(text, "\\") {
			pending += text[:len(text)-1] + " "
			continue
		}
		text = pending + text
		pending = ""
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		rest := strings.TrimSpace(strings.TrimSpace(text)[len(fields[0]):])
		if err := fn(start, fields[0], fields[1:], rest); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return errors.Wrapf(err, "line %d", lineNo+1)
	}
	return nil
}

func Parse(r io.Reader, path string) (*Document, error) {
	return NewParser(r, path).Parse()
}

func Load(path string, enc encoding.Encoding) (*Document, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	parser := NewParser(r, path)
	parser.Encoding = enc
	return parser.Parse()
}
