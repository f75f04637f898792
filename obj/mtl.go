package obj

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/binzume/organconv/geom"
	"github.com/binzume/organconv/logging"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// MTLParser for mtl file.
type MTLParser struct {
	name     string
	r        io.Reader
	line     int
	Encoding encoding.Encoding
}

func NewMTLParser(r io.Reader, path string) *MTLParser {
	return &MTLParser{name: path, r: r}
}

func (p *MTLParser) errorf(format string, args ...interface{}) error {
	return errors.Errorf("line %d: "+format, append([]interface{}{p.line}, args...)...)
}

func (p *MTLParser) readColor(fields []string) (*geom.Vector3, error) {
	if len(fields) > 0 && (fields[0] == "spectral" || fields[0] == "xyz") {
		return nil, nil
	}
	v := make([]float64, 3)
	for i := range v {
		if i >= len(fields) {
			// "Kd r" means grey.
			v[i] = v[0]
			continue
		}
		f, err := parseFloat(fields[i])
		if err != nil {
			return nil, p.errorf("invalid color %q", fields[i])
		}
		v[i] = f
	}
	return geom.NewVector3FromSlice(v), nil
}

func (p *MTLParser) readFloat(fields []string) (*float64, error) {
	if len(fields) == 0 {
		return nil, p.errorf("missing value")
	}
	f, err := parseFloat(fields[len(fields)-1])
	if err != nil {
		return nil, p.errorf("invalid number %q", fields[len(fields)-1])
	}
	return &f, nil
}

func (p *MTLParser) Parse() ([]*Material, error) {
	var materials []*Material
	var cur *Material
	skipped := map[string]bool{}

	var r io.Reader = p.r
	if p.Encoding != nil {
		r = transform.NewReader(r, p.Encoding.NewDecoder())
	}
	err := scanLines(r, func(line int, keyword string, fields []string, rest string) error {
		p.line = line
		if keyword == "newmtl" {
			cur = NewMaterial(rest)
			materials = append(materials, cur)
			return nil
		}
		if cur == nil {
			return p.errorf("%s before newmtl", keyword)
		}
		var err error
		switch keyword {
		case "Ka":
			cur.Ambient, err = p.readColor(fields)
		case "Kd":
			cur.Diffuse, err = p.readColor(fields)
		case "Ks":
			cur.Specular, err = p.readColor(fields)
		case "Ke":
			cur.Emissive, err = p.readColor(fields)
		case "Ns":
			cur.Shininess, err = p.readFloat(fields)
		case "Ni":
			cur.IOR, err = p.readFloat(fields)
		case "d":
			cur.Dissolve, err = p.readFloat(fields)
		case "Tr":
			var tr *float64
			if tr, err = p.readFloat(fields); err == nil && cur.Dissolve == nil {
				d := 1 - *tr
				cur.Dissolve = &d
			}
		case "illum":
			var n int
			if n, err = strconv.Atoi(rest); err != nil {
				err = p.errorf("invalid illum %q", rest)
			} else {
				cur.Illum = &n
			}
		case "map_Kd":
			cur.DiffuseTexture = rest
		case "map_Bump", "map_bump", "bump":
			cur.BumpTexture = rest
		case "map_d":
			cur.AlphaTexture = rest
		default:
			if !skipped[keyword] {
				skipped[keyword] = true
				logging.Debugf("%s: skip %s", p.name, keyword)
			}
		}
		return err
	})
	if err != nil {
		return materials, errors.Wrapf(err, "%s", p.name)
	}
	return materials, nil
}

// TexturePath returns the file name of a texture statement, dropping its options.
func TexturePath(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "-") {
		return statement
	}
	return fields[len(fields)-1]
}

// ReplaceTexturePath replaces the file name of a texture statement keeping its options.
func ReplaceTexturePath(statement, path string) string {
	file := TexturePath(statement)
	if file == statement {
		return path
	}
	return strings.TrimSuffix(strings.TrimSpace(statement), file) + path
}

func WriteMTL(materials []*Material, ww io.Writer, opts *WriteOption) error {
	if opts == nil {
		opts = &WriteOption{}
	}
	ew := opts.encode(ww)
	w := bufio.NewWriter(ew)
	for _, line := range opts.Header {
		fmt.Fprintf(w, "# %s\n", line)
	}
	fmt.Fprintf(w, "# Material Count: %d\n", len(materials))
	for _, m := range materials {
		fmt.Fprintf(w, "\nnewmtl %s\n", m.Name)
		if m.Shininess != nil {
			fmt.Fprintf(w, "Ns %s\n", opts.formatFloat(*m.Shininess))
		}
		color := func(key string, c *geom.Vector3) {
			if c != nil {
				fmt.Fprintf(w, "%s %s %s %s\n", key, opts.formatFloat(c.X), opts.formatFloat(c.Y), opts.formatFloat(c.Z))
			}
		}
		color("Ka", m.Ambient)
		color("Kd", m.Diffuse)
		color("Ks", m.Specular)
		color("Ke", m.Emissive)
		if m.IOR != nil {
			fmt.Fprintf(w, "Ni %s\n", opts.formatFloat(*m.IOR))
		}
		if m.Dissolve != nil {
			fmt.Fprintf(w, "d %s\n", opts.formatFloat(*m.Dissolve))
		}
		if m.Illum != nil {
			fmt.Fprintf(w, "illum %d\n", *m.Illum)
		}
		if m.DiffuseTexture != "" {
			fmt.Fprintf(w, "map_Kd %s\n", m.DiffuseTexture)
		}
		if m.BumpTexture != "" {
			fmt.Fprintf(w, "map_Bump %s\n", m.BumpTexture)
		}
		if m.AlphaTexture != "" {
			fmt.Fprintf(w, "map_d %s\n", m.AlphaTexture)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return ew.Close()
}
