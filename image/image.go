package image

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Image is a decoded source image.
type Image interface {
	Width() int
	Height() int
	// Transform renders the plan and returns the encoded bytes.
	Transform(p *Plan) ([]byte, error)
}

// Features describes what a renderer can produce, it feeds info.json.
type Features struct {
	Formats           []string
	Qualities         []Quality
	ArbitraryRotation bool
	Mirroring         bool
}

// Decoder turns source bytes into an Image.
type Decoder interface {
	Name() string
	Decode(buf []byte) (Image, error)
	Features() Features
}

// Sniff detects the MIME type of a source and rejects anything that is
// neither an image nor a PDF.
func Sniff(buf []byte) (string, error) {
	m := mimetype.Detect(buf)
	mime := m.String()
	if strings.HasPrefix(mime, "image/") || m.Is("application/pdf") {
		return mime, nil
	}
	return mime, fmt.Errorf("%w: detected %s", ErrUnreadable, mime)
}
