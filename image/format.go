package image

import (
	"sort"
	"strings"
)

type Quality string

const (
	DefaultQuality Quality = "default"
	ColorQuality   Quality = "color"
	GrayQuality    Quality = "gray"
	BitonalQuality Quality = "bitonal"
)

// ParseQuality accepts the IIIF 2.1 qualities, "native" being the 1.1
// spelling of "default".
func ParseQuality(input string) (Quality, error) {
	switch input {
	case "default", "native":
		return DefaultQuality, nil
	case "color", "colour":
		return ColorQuality, nil
	case "gray", "grey":
		return GrayQuality, nil
	case "bitonal":
		return BitonalQuality, nil
	}
	return "", parseError("quality", input, "")
}

// Format is an output format, Name being its canonical extension.
type Format struct {
	Name string
	MIME string
}

// FormatTable maps request extensions to output formats. It is built once
// at startup and handed to a Parser.
type FormatTable map[string]Format

func DefaultFormats() FormatTable {
	jpg := Format{"jpg", "image/jpeg"}
	tif := Format{"tif", "image/tiff"}
	return FormatTable{
		"jpg":  jpg,
		"jpeg": jpg,
		"png":  {"png", "image/png"},
		"tif":  tif,
		"tiff": tif,
		"gif":  {"gif", "image/gif"},
		"webp": {"webp", "image/webp"},
		"jp2":  {"jp2", "image/jp2"},
		"pdf":  {"pdf", "application/pdf"},
	}
}

func (t FormatTable) Lookup(extension string) (Format, error) {
	f, ok := t[strings.ToLower(extension)]
	if !ok {
		return Format{}, parseError("format", extension, "")
	}
	return f, nil
}

// Names lists the canonical extensions of the table.
func (t FormatTable) Names() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(t))
	for _, f := range t {
		if !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}
