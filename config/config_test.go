package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeFile(t, path, "mode = \"parts\"\npivot = \"bounds\"\nparts = false\nsimplify = 0.5\n")

	if Find("", dir) != path {
		t.Error("default config not found")
	}
	if Find("other.toml", dir) != "other.toml" {
		t.Error("explicit config should win")
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	mode := fs.String("mode", "both", "")
	pivot := fs.String("pivot", "median", "")
	parts := fs.Bool("parts", true, "")
	simplify := fs.Float64("simplify", 0, "")
	if err := fs.Parse([]string{"-pivot", "median"}); err != nil {
		t.Fatal(err)
	}
	if err := conf.ApplyTo(fs); err != nil {
		t.Fatal(err)
	}
	if *mode != "parts" {
		t.Error("mode: ", *mode)
	}
	if *pivot != "median" {
		t.Error("explicit flag overwritten: ", *pivot)
	}
	if *parts {
		t.Error("parts should be false")
	}
	if *simplify != 0.5 {
		t.Error("simplify: ", *simplify)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, "nosuchkey = 1\n")
	if _, err := Load(path); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestLookupEncoding(t *testing.T) {
	if enc, err := LookupEncoding(""); enc != nil || err != nil {
		t.Error("empty name should mean utf-8")
	}
	for _, name := range []string{"Shift_JIS", "sjis", "windows-1252", "ISO-8859-1"} {
		if enc, err := LookupEncoding(name); enc == nil || err != nil {
			t.Error("encoding not found: ", name, err)
		}
	}
	if _, err := LookupEncoding("klingon"); err == nil {
		t.Error("unknown encoding should fail")
	}
	if len(ListEncodings()) < 5 {
		t.Error("ListEncodings()")
	}
}
