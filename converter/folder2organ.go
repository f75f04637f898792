package converter

import (
	"os"
	"path/filepath"

	"github.com/binzume/organconv/gltfutil"
	"github.com/binzume/organconv/logging"
	"github.com/binzume/organconv/organ"
	"github.com/binzume/organconv/scene"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

const DefaultOutDir = "_complete"

type FolderToOrganOption struct {
	Mode     organ.Mode
	Pivot    organ.Pivot
	Metadata organ.Format

	// OutDir is the output directory, relative to the source folder. Default: "_complete"
	OutDir    string
	// SkipParts disables writing <part>.obj for each part.
	SkipParts bool

	// Precision of exported coordinates. 0: shortest representation that round-trips.
	Precision int
	Encoding  encoding.Encoding

	// SimplifyFactor in (0,1) decimates every part before centering.
	SimplifyFactor float64

	// GLTF writes <model>.glb too if not nil.
	GLTF *OrganToGLTFOption
}

type Result struct {
	OutDir   string
	Model    string
	Parts    []string
	Metadata string
	GLB      string
	Offsets  *organ.Offsets
}

type folderToOrgan struct {
	*FolderToOrganOption
	scene *scene.Scene
}

func NewFolderToOrganConverter(options *FolderToOrganOption) *folderToOrgan {
	if options == nil {
		options = &FolderToOrganOption{}
	}
	if options.Mode == "" {
		options.Mode = organ.ModeBoth
	}
	if options.Pivot == "" {
		options.Pivot = organ.PivotMedian
	}
	if options.Metadata == "" {
		options.Metadata = organ.FormatJSON
	}
	if options.OutDir == "" {
		options.OutDir = DefaultOutDir
	}
	s := scene.New()
	s.Encoding = options.Encoding
	return &folderToOrgan{FolderToOrganOption: options, scene: s}
}

func (c *folderToOrgan) Scene() *scene.Scene {
	return c.scene
}

func (c *folderToOrgan) outDir(folder string) string {
	if filepath.IsAbs(c.OutDir) {
		return c.OutDir
	}
	return filepath.Join(folder, c.OutDir)
}

// Convert imports the meshes of folder, centers them and writes the combined model, the parts and
// the offset record into the output directory.
func (c *folderToOrgan) Convert(folder, modelName string) (*Result, error) {
	if modelName == "" {
		return nil, errors.New("model name is empty")
	}
	if st, err := os.Stat(folder); err != nil {
		return nil, errors.Wrap(err, "folder")
	} else if !st.IsDir() {
		return nil, errors.Errorf("%s is not a directory", folder)
	}

	s := c.scene
	s.Clear()
	if err := s.ImportFolder(folder); err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		logging.Warnf("no mesh files in %s", folder)
	}
	if c.SimplifyFactor > 0 && c.SimplifyFactor < 1 {
		for _, p := range s.Parts() {
			before := p.Doc.FaceCount()
			p.Doc = Simplify(p.Doc, c.SimplifyFactor)
			logging.Debugf("simplify %s: %d -> %d faces", p.Name, before, p.Doc.FaceCount())
		}
	}

	res := &Result{OutDir: c.outDir(folder), Offsets: organ.NewOffsets(c.Mode, c.Pivot)}
	if err := os.MkdirAll(res.OutDir, 0755); err != nil {
		return nil, errors.Wrap(err, "output directory")
	}
	exportOpts := &scene.ExportOption{Precision: c.Precision}

	if c.Mode.Aggregate() {
		if err := organ.CenterAggregate(s, c.Pivot, res.Offsets); err != nil {
			return nil, err
		}
	}

	names := s.PartNames()
	res.Model = filepath.Join(res.OutDir, modelName+".obj")
	combined, err := s.Merged(names, res.OutDir)
	if err != nil {
		return nil, err
	}
	if c.Metadata != organ.FormatInline {
		if err := s.WriteMesh(res.Model, combined, exportOpts); err != nil {
			return nil, err
		}
	}

	if c.Mode.Parts() {
		err = organ.CenterParts(s, c.Pivot, res.Offsets)
	} else {
		err = organ.RecordParts(s, c.Pivot, res.Offsets)
	}
	if err != nil {
		return nil, err
	}

	if !c.SkipParts {
		for _, name := range names {
			path := filepath.Join(res.OutDir, name+".obj")
			if path == res.Model {
				logging.Warnf("part %s has the same name as the model, skipped", name)
				continue
			}
			if err := s.ExportMesh(path, []string{name}, exportOpts); err != nil {
				return nil, err
			}
			res.Parts = append(res.Parts, path)
		}
	}

	if c.Metadata == organ.FormatInline {
		comment, err := res.Offsets.InlineComment()
		if err != nil {
			return nil, err
		}
		opts := *exportOpts
		opts.Header = []string{comment}
		if err := s.WriteMesh(res.Model, combined, &opts); err != nil {
			return nil, err
		}
	} else {
		res.Metadata = filepath.Join(res.OutDir, c.Metadata.FileName())
		if err := res.Offsets.Save(res.Metadata, c.Metadata); err != nil {
			return nil, err
		}
	}

	if c.GLTF != nil {
		opts := *c.GLTF
		if opts.Name == "" {
			opts.Name = modelName
		}
		doc, err := NewOrganToGLTFConverter(&opts).Convert(s, res.Offsets, res.OutDir)
		if err != nil {
			return nil, errors.Wrap(err, "glb")
		}
		res.GLB = filepath.Join(res.OutDir, modelName+".glb")
		if err := gltfutil.Save(doc, res.GLB); err != nil {
			return nil, err
		}
	}
	return res, nil
}
