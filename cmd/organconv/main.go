package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/binzume/organconv/config"
	"github.com/binzume/organconv/converter"
	"github.com/binzume/organconv/logging"
	"github.com/binzume/organconv/organ"
	"github.com/pkg/errors"
)

type options struct {
	folder    string
	modelName string
	mode      string
	pivot     string
	metadata  string
	parts     bool
	out       string
	glb       bool
	gltfScale float64
	gltfUnlit bool
	texLimit  int
	simplify  float64
	encoding  string
	precision int
	config    string
	watch     bool
	dump      bool
	verbose   bool
}

// scriptArgs returns the arguments after a "--" separator, or all of them if there is none.
func scriptArgs(args []string) []string {
	for i, a := range args {
		if a == "--" {
			return args[i+1:]
		}
	}
	return args
}

func newFlagSet(o *options, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("organconv", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: organconv [--] -folder path -newModelName name [options]\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.folder, "folder", "", "folder containing *.obj files")
	fs.StringVar(&o.modelName, "newModelName", "", "name of the combined model")
	fs.StringVar(&o.mode, "mode", string(organ.ModeBoth), "centering: aggregate, parts or both")
	fs.StringVar(&o.pivot, "pivot", string(organ.PivotMedian), "pivot: median or bounds")
	fs.StringVar(&o.metadata, "metadata", string(organ.FormatJSON), "metadata output: json, yaml or inline")
	fs.BoolVar(&o.parts, "parts", true, "export each part")
	fs.StringVar(&o.out, "out", converter.DefaultOutDir, "output directory (relative to folder)")
	fs.BoolVar(&o.glb, "glb", false, "write <newModelName>.glb")
	fs.Float64Var(&o.gltfScale, "gltfscale", 1, "scale of the glb")
	fs.BoolVar(&o.gltfUnlit, "gltfunlit", false, "unlit all materials (.glb)")
	fs.IntVar(&o.texLimit, "texlimit", 0, "texture resolution limit (.glb) 0:unlimited")
	fs.Float64Var(&o.simplify, "simplify", 0, "decimate parts to this ratio of faces (0,1)")
	fs.StringVar(&o.encoding, "encoding", "", "text encoding of obj/mtl files (e.g. shift_jis)")
	fs.IntVar(&o.precision, "precision", 0, "digits after the decimal point. 0:shortest")
	fs.StringVar(&o.config, "config", "", "config file (default: <folder>/"+config.DefaultFileName+")")
	fs.BoolVar(&o.watch, "watch", false, "convert again when the folder changes")
	fs.BoolVar(&o.dump, "dump", false, "dump the scene after conversion")
	fs.BoolVar(&o.verbose, "v", false, "verbose log")
	return fs
}

// parseArgs parses the command line and the config file. Explicit flags override the config file.
func parseArgs(args []string, output io.Writer) (*options, error) {
	o := &options{}
	fs := newFlagSet(o, output)
	if err := fs.Parse(scriptArgs(args)); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if o.folder == "" || o.modelName == "" {
		fs.Usage()
		return nil, errors.New("-folder and -newModelName are required")
	}
	if path := config.Find(o.config, o.folder); path != "" {
		conf, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if err := conf.ApplyTo(fs); err != nil {
			return nil, err
		}
		o.config = path
	}
	return o, nil
}

func (o *options) converterOption() (*converter.FolderToOrganOption, error) {
	mode, err := organ.ParseMode(o.mode)
	if err != nil {
		return nil, err
	}
	pivot, err := organ.ParsePivot(o.pivot)
	if err != nil {
		return nil, err
	}
	format, err := organ.ParseFormat(o.metadata)
	if err != nil {
		return nil, err
	}
	enc, err := config.LookupEncoding(o.encoding)
	if err != nil {
		return nil, err
	}
	if o.simplify < 0 || o.simplify >= 1 {
		return nil, errors.Errorf("simplify must be in (0,1): %v", o.simplify)
	}
	opt := &converter.FolderToOrganOption{
		Mode:           mode,
		Pivot:          pivot,
		Metadata:       format,
		OutDir:         o.out,
		SkipParts:      !o.parts,
		Precision:      o.precision,
		Encoding:       enc,
		SimplifyFactor: o.simplify,
	}
	if o.glb {
		opt.GLTF = &converter.OrganToGLTFOption{
			Scale:                  o.gltfScale,
			ForceUnlit:             o.gltfUnlit,
			TextureResolutionLimit: o.texLimit,
		}
	}
	return opt, nil
}

type organConverter interface {
	Convert(folder, modelName string) (*converter.Result, error)
}

func run(o *options, conv organConverter) error {
	res, err := conv.Convert(o.folder, o.modelName)
	if err != nil {
		return err
	}
	logging.Infof("out: %s", res.Model)
	for _, p := range res.Parts {
		logging.Debugf("out: %s", p)
	}
	if res.Metadata != "" {
		logging.Infof("out: %s", res.Metadata)
	}
	if res.GLB != "" {
		logging.Infof("out: %s", res.GLB)
	}
	logging.Infof("%d parts, bodyOffset: %v", len(res.Offsets.Parts), res.Offsets.BodyOffset)
	return nil
}

func main() {
	o, err := parseArgs(os.Args[1:], os.Stderr)
	if err == flag.ErrHelp {
		os.Exit(0)
	} else if err != nil {
		logging.Errorf("%v", err)
		os.Exit(2)
	}
	logging.SetVerbose(o.verbose)
	if o.config != "" {
		logging.Debugf("config: %s", o.config)
	}

	opt, err := o.converterOption()
	if err != nil {
		logging.Errorf("%v", err)
		os.Exit(2)
	}
	conv := converter.NewFolderToOrganConverter(opt)

	if o.watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = watch(ctx, o.folder, opt.OutDir, func() error {
			err := run(o, conv)
			if err != nil {
				logging.Errorf("%+v", err)
			}
			return nil
		})
	} else {
		err = run(o, conv)
	}
	if o.dump {
		conv.Scene().Dump(os.Stderr)
	}
	if err != nil {
		logging.Fatalf("%v", err)
	}
}
