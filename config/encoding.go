package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// LookupEncoding returns the text encoding for name. Empty name and utf-8 return nil,
// which means the input is passed through unchanged.
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := normalizeEncodingName(name)
	switch key {
	case "", "utf8":
		return nil, nil
	case "utf8bom":
		return unicode.UTF8BOM, nil
	case "shiftjis", "sjis", "cp932", "windows31j":
		return japanese.ShiftJIS, nil
	case "eucjp":
		return japanese.EUCJP, nil
	}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if normalizeEncodingName(cm.String()) == key {
				return cm, nil
			}
		}
	}
	return nil, errors.Errorf("Failed to find encoding %q", name)
}

func normalizeEncodingName(name string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name))
}

func ListEncodings() []string {
	list := []string{"utf-8", "utf-8-bom", "Shift_JIS", "EUC-JP"}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}
