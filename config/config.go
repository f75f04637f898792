// Package config loads organconv.toml files and layers them under command line flags.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// DefaultFileName is looked up in the source folder when no config file is given.
const DefaultFileName = "organconv.toml"

// Config mirrors the command line flags. Keys are the flag names.
type Config struct {
	Mode         string   `toml:"mode"`
	Pivot        string   `toml:"pivot"`
	Metadata     string   `toml:"metadata"`
	Parts        *bool    `toml:"parts"`
	Out          string   `toml:"out"`
	GLB          *bool    `toml:"glb"`
	GLTFScale    *float64 `toml:"gltfscale"`
	GLTFUnlit    *bool    `toml:"gltfunlit"`
	TextureLimit *int     `toml:"texlimit"`
	Simplify     *float64 `toml:"simplify"`
	Encoding     string   `toml:"encoding"`
	Precision    *int     `toml:"precision"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var conf Config
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conf); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %s", path)
	}
	return &conf, nil
}

// Find returns the config file to use: explicit wins, otherwise DefaultFileName in folder
// if it exists, otherwise "".
func Find(explicit, folder string) string {
	if explicit != "" {
		return explicit
	}
	path := filepath.Join(folder, DefaultFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (c *Config) values() map[string]string {
	v := map[string]string{}
	str := func(name, s string) {
		if s != "" {
			v[name] = s
		}
	}
	str("mode", c.Mode)
	str("pivot", c.Pivot)
	str("metadata", c.Metadata)
	str("out", c.Out)
	str("encoding", c.Encoding)
	if c.Parts != nil {
		v["parts"] = strconv.FormatBool(*c.Parts)
	}
	if c.GLB != nil {
		v["glb"] = strconv.FormatBool(*c.GLB)
	}
	if c.GLTFUnlit != nil {
		v["gltfunlit"] = strconv.FormatBool(*c.GLTFUnlit)
	}
	if c.GLTFScale != nil {
		v["gltfscale"] = strconv.FormatFloat(*c.GLTFScale, 'g', -1, 64)
	}
	if c.Simplify != nil {
		v["simplify"] = strconv.FormatFloat(*c.Simplify, 'g', -1, 64)
	}
	if c.TextureLimit != nil {
		v["texlimit"] = strconv.Itoa(*c.TextureLimit)
	}
	if c.Precision != nil {
		v["precision"] = strconv.Itoa(*c.Precision)
	}
	return v
}

// ApplyTo sets every configured value on fs unless the flag was given explicitly.
func (c *Config) ApplyTo(fs *flag.FlagSet) error {
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	values := c.values()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if explicit[name] {
			continue
		}
		if err := fs.Set(name, values[name]); err != nil {
			return errors.Wrapf(err, "config %s", name)
		}
	}
	return nil
}
