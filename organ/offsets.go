package organ

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/binzume/organconv/geom"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// MetadataName is the base name of the metadata sidecar.
const MetadataName = "organ_metadata"

// InlinePrefix starts the comment line that embeds the record in an OBJ file.
const InlinePrefix = MetadataName + " "

// Offsets records the translations removed by centering.
//
// BodyOffset is where the aggregate pivot was before the aggregate was centered.
// Parts holds the pivot of each part relative to the aggregate center, i.e. the translation
// removed when the part was centered on its own.
type Offsets struct {
	BodyOffset geom.Vector3             `json:"bodyOffset" yaml:"bodyOffset"`
	Parts      map[string]*geom.Vector3 `json:"parts" yaml:"parts"`
	Mode       Mode                     `json:"mode,omitempty" yaml:"mode,omitempty"`
	Pivot      Pivot                    `json:"pivot,omitempty" yaml:"pivot,omitempty"`
}

func NewOffsets(mode Mode, pivot Pivot) *Offsets {
	return &Offsets{Parts: map[string]*geom.Vector3{}, Mode: mode, Pivot: pivot}
}

func (o *Offsets) Names() []string {
	names := make([]string, 0, len(o.Parts))
	for name := range o.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Displacement returns the total translation that was applied to the part.
func (o *Offsets) Displacement(name string) *geom.Vector3 {
	d := &geom.Vector3{}
	if o.Mode.Aggregate() {
		d = d.Sub(&o.BodyOffset)
	}
	if p, ok := o.Parts[name]; ok && o.Mode.Parts() {
		d = d.Sub(p)
	}
	return d
}

// Restore maps a position of the centered part back to its original world position.
func (o *Offsets) Restore(name string, v *geom.Vector3) *geom.Vector3 {
	return v.Sub(o.Displacement(name))
}

func (o *Offsets) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func (o *Offsets) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// InlineComment returns the record as a single comment line body.
func (o *Offsets) InlineComment() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return InlinePrefix + string(data), nil
}

func (o *Offsets) normalize() *Offsets {
	if o.Parts == nil {
		o.Parts = map[string]*geom.Vector3{}
	}
	return o
}

func ReadJSON(r io.Reader) (*Offsets, error) {
	var o Offsets
	if err := json.NewDecoder(r).Decode(&o); err != nil {
		return nil, errors.Wrap(err, "metadata json")
	}
	return o.normalize(), nil
}

func ReadYAML(r io.Reader) (*Offsets, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var o Offsets
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrap(err, "metadata yaml")
	}
	return o.normalize(), nil
}

// ReadInline finds the embedded record in the comment lines of an OBJ file.
func ReadInline(r io.Reader) (*Offsets, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if strings.HasPrefix(body, InlinePrefix) {
			return ReadJSON(strings.NewReader(strings.TrimPrefix(body, InlinePrefix)))
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("no " + MetadataName + " comment found")
}

// Load reads a record from a .json, .yaml/.yml or .obj (inline comment) file.
func Load(path string) (*Offsets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var o *Offsets
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		o, err = ReadYAML(f)
	case ".obj":
		o, err = ReadInline(f)
	default:
		o, err = ReadJSON(f)
	}
	return o, errors.Wrapf(err, "%s", path)
}

// Format of the metadata output.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatInline Format = "inline"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatYAML, FormatInline:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", errors.Errorf("unknown metadata format %q (json, yaml, inline)", s)
}

// FileName returns the sidecar file name, or "" for inline metadata.
func (f Format) FileName() string {
	switch f {
	case FormatYAML:
		return MetadataName + ".yaml"
	case FormatInline:
		return ""
	}
	return MetadataName + ".json"
}

// Save writes the record as a sidecar file.
func (o *Offsets) Save(path string, format Format) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if format == FormatYAML {
		err = o.WriteYAML(w)
	} else {
		err = o.WriteJSON(w)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "%s", path)
}
