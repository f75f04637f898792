package obj

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/binzume/organconv/geom"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

type WriteOption struct {
	// Header lines are written as comments at the top of the file.
	Header []string
	// MaterialLib replaces the document's mtllib statements when set.
	MaterialLib string
	// Precision is the number of decimals. 0: shortest representation that round-trips.
	Precision int
	Encoding  encoding.Encoding
}

func (opts *WriteOption) formatFloat(f float64) string {
	if opts.Precision > 0 {
		return strconv.FormatFloat(f, 'f', opts.Precision, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (opts *WriteOption) encode(w io.Writer) io.WriteCloser {
	if opts.Encoding == nil {
		return nopCloser{w}
	}
	return transform.NewWriter(w, opts.Encoding.NewEncoder())
}

func writeIndex(w *bufio.Writer, f *Face, i int) {
	w.WriteString(strconv.Itoa(f.Verts[i] + 1))
	uv, n := -1, -1
	if f.UVs != nil {
		uv = f.UVs[i]
	}
	if f.Normals != nil {
		n = f.Normals[i]
	}
	if uv < 0 && n < 0 {
		return
	}
	w.WriteByte('/')
	if uv >= 0 {
		w.WriteString(strconv.Itoa(uv + 1))
	}
	if n >= 0 {
		w.WriteByte('/')
		w.WriteString(strconv.Itoa(n + 1))
	}
}

func (opts *WriteOption) writeVector3(w *bufio.Writer, key string, v *geom.Vector3) {
	fmt.Fprintf(w, "%s %s %s %s\n", key, opts.formatFloat(v.X), opts.formatFloat(v.Y), opts.formatFloat(v.Z))
}

func Write(doc *Document, ww io.Writer, opts *WriteOption) error {
	if opts == nil {
		opts = &WriteOption{}
	}
	ew := opts.encode(ww)
	w := bufio.NewWriter(ew)

	for _, line := range opts.Header {
		fmt.Fprintf(w, "# %s\n", line)
	}
	if opts.MaterialLib != "" {
		fmt.Fprintf(w, "mtllib %s\n", opts.MaterialLib)
	} else if len(doc.MaterialLibs) > 0 {
		fmt.Fprintf(w, "mtllib %s\n", strings.Join(doc.MaterialLibs, " "))
	}

	for _, v := range doc.Vertexes {
		opts.writeVector3(w, "v", v)
	}
	for _, uv := range doc.UVs {
		fmt.Fprintf(w, "vt %s %s\n", opts.formatFloat(uv.X), opts.formatFloat(uv.Y))
	}
	for _, n := range doc.Normals {
		opts.writeVector3(w, "vn", n)
	}

	for _, o := range doc.Objects {
		if o.Name != "" {
			if o.Group {
				fmt.Fprintf(w, "g %s\n", o.Name)
			} else {
				fmt.Fprintf(w, "o %s\n", o.Name)
			}
		}
		material, smooth := "", ""
		for _, f := range o.Faces {
			if f.Material != material && f.Material != "" {
				fmt.Fprintf(w, "usemtl %s\n", f.Material)
			}
			material = f.Material
			if f.Smooth != smooth && f.Smooth != "" {
				fmt.Fprintf(w, "s %s\n", f.Smooth)
			}
			smooth = f.Smooth
			w.WriteString("f")
			for i := range f.Verts {
				w.WriteByte(' ')
				writeIndex(w, f, i)
			}
			w.WriteByte('\n')
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return ew.Close()
}
