//go:build vips

// Package vips renders images with libvips through bimg. It needs cgo and
// the libvips headers, hence the build tag.
package vips

import (
	"fmt"

	"gopkg.in/h2non/bimg.v1"

	"github.com/greut/sipi/image"
)

var types = map[string]bimg.ImageType{
	"jpg":  bimg.JPEG,
	"png":  bimg.PNG,
	"webp": bimg.WEBP,
	"tif":  bimg.TIFF,
	"gif":  bimg.GIF,
	"pdf":  bimg.PDF,
	"jp2":  bimg.MAGICK,
}

// Decoder is the libvips renderer. It only rotates by multiples of 90.
type Decoder struct {
	Quality int
}

func New() *Decoder {
	return &Decoder{Quality: 85}
}

func (d *Decoder) Name() string {
	return "vips"
}

func (d *Decoder) Features() image.Features {
	var formats []string
	for name, t := range types {
		if bimg.IsTypeSupportedSave(t) {
			formats = append(formats, name)
		}
	}
	return image.Features{
		Formats:   formats,
		Qualities: []image.Quality{image.ColorQuality, image.DefaultQuality, image.GrayQuality},
		Mirroring: true,
	}
}

func (d *Decoder) Decode(buf []byte) (image.Image, error) {
	if _, err := image.Sniff(buf); err != nil {
		return nil, err
	}

	t := bimg.DetermineImageType(buf)
	if !bimg.IsTypeSupported(t) {
		return nil, fmt.Errorf("%w: libvips cannot read %s", image.ErrUnreadable, bimg.ImageTypes[t])
	}

	size, err := bimg.NewImage(buf).Size()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", image.ErrUnreadable, err)
	}

	return &vipsImage{buf: buf, width: size.Width, height: size.Height, quality: d.Quality}, nil
}

type vipsImage struct {
	buf     []byte
	width   int
	height  int
	quality int
}

func (v *vipsImage) Width() int {
	return v.width
}

func (v *vipsImage) Height() int {
	return v.height
}

func (v *vipsImage) Transform(p *image.Plan) ([]byte, error) {
	opts, err := options(p, v.quality)
	if err != nil {
		return nil, err
	}

	img := bimg.NewImage(v.buf)
	if p.Cropped() {
		if _, err := img.Extract(p.Crop.Y, p.Crop.X, p.Crop.W, p.Crop.H); err != nil {
			return nil, fmt.Errorf("bimg couldn't crop the image: %w", err)
		}
	}

	buf, err := img.Process(opts)
	if err != nil {
		return nil, fmt.Errorf("bimg couldn't process the image: %w", err)
	}
	return buf, nil
}

// options translates a plan into a single bimg pass. bimg rotates before
// flopping, so a mirrored request rotates the opposite way.
func options(p *image.Plan, quality int) (bimg.Options, error) {
	t, ok := types[p.Format.Name]
	if !ok || !bimg.IsTypeSupportedSave(t) {
		return bimg.Options{}, image.ErrUnsupportedFormat
	}
	if !p.Rotation.IsRightAngle() {
		return bimg.Options{}, image.ErrUnsupportedRotation
	}

	opts := bimg.Options{
		Type:    t,
		Quality: quality,
	}

	if p.Resized() {
		opts.Width = p.Size.Width
		opts.Height = p.Size.Height
		opts.Force = true
	}

	angle := int(p.Rotation.Normalized())
	if p.Rotation.Mirror {
		opts.Flop = true
		angle = (360 - angle) % 360
	}
	opts.Rotate = bimg.Angle(angle)

	switch p.Quality {
	case image.GrayQuality:
		opts.Interpretation = bimg.InterpretationBW
	case image.BitonalQuality:
		return bimg.Options{}, image.ErrUnsupportedQuality
	}

	return opts, nil
}
