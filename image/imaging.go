package image

import (
	"bytes"
	"fmt"
	goimage "image"

	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// bitonalThreshold is the luminance level splitting black from white.
const bitonalThreshold = 128

var imagingFormats = map[string]imaging.Format{
	"jpg": imaging.JPEG,
	"png": imaging.PNG,
	"gif": imaging.GIF,
	"tif": imaging.TIFF,
}

// ImagingDecoder is the pure Go renderer.
type ImagingDecoder struct {
	// JPEGQuality defaults to 85.
	JPEGQuality int
}

func NewImagingDecoder() *ImagingDecoder {
	return &ImagingDecoder{JPEGQuality: 85}
}

func (d *ImagingDecoder) Name() string {
	return "imaging"
}

func (d *ImagingDecoder) Features() Features {
	return Features{
		Formats:           []string{"gif", "jpg", "png", "tif"},
		Qualities:         []Quality{BitonalQuality, ColorQuality, DefaultQuality, GrayQuality},
		ArbitraryRotation: true,
		Mirroring:         true,
	}
}

func (d *ImagingDecoder) Decode(buf []byte) (Image, error) {
	if _, err := Sniff(buf); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, err)
	}

	return &imagingImage{img: img, quality: d.JPEGQuality}, nil
}

type imagingImage struct {
	img     goimage.Image
	quality int
}

func (i *imagingImage) Width() int {
	return i.img.Bounds().Dx()
}

func (i *imagingImage) Height() int {
	return i.img.Bounds().Dy()
}

// Transform crops, resizes, mirrors, rotates and then applies the quality.
// Halving alone uses the box filter, anything else Lanczos.
func (i *imagingImage) Transform(p *Plan) ([]byte, error) {
	format, ok := imagingFormats[p.Format.Name]
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	img := i.img
	if p.Cropped() {
		b := i.img.Bounds()
		img = imaging.Crop(img, goimage.Rect(
			b.Min.X+p.Crop.X,
			b.Min.Y+p.Crop.Y,
			b.Min.X+p.Crop.X+p.Crop.W,
			b.Min.Y+p.Crop.Y+p.Crop.H,
		))
	}

	if p.Resized() {
		filter := imaging.Lanczos
		if p.Size.ReduceOnly {
			filter = imaging.Box
		}
		img = imaging.Resize(img, p.Size.Width, p.Size.Height, filter)
	}

	if p.Rotation.Mirror {
		img = imaging.FlipH(img)
	}

	switch angle := p.Rotation.Normalized(); angle {
	case 0:
	case 90:
		// imaging turns counter-clockwise
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	default:
		img = transform.Rotate(img, angle, &transform.RotationOptions{ResizeBounds: true})
	}

	switch p.Quality {
	case GrayQuality:
		img = imaging.Grayscale(img)
	case BitonalQuality:
		img = segment.Threshold(img, bitonalThreshold)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(i.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
