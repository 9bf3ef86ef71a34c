package image

import (
	"bytes"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

func newFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := goimage.NewNRGBA(goimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImagingTransform(t *testing.T) {
	d := NewImagingDecoder()
	img, err := d.Decode(newFixture(t, 400, 300))
	if err != nil {
		t.Fatal(err)
	}
	if img.Width() != 400 || img.Height() != 300 {
		t.Fatalf("got %dx%d want 400x300", img.Width(), img.Height())
	}

	p := NewParser(false, DefaultFormats())

	var tests = []struct {
		params [5]string
		width  int
		height int
	}{
		{[5]string{"full", "max", "0", "default", "png"}, 400, 300},
		{[5]string{"full", "200,", "90", "default", "png"}, 150, 200},
		{[5]string{"full", "200,", "!270", "color", "jpg"}, 150, 200},
		{[5]string{"square", "100,100", "0", "gray", "jpg"}, 100, 100},
		{[5]string{"10,10,50,40", "full", "180", "bitonal", "png"}, 50, 40},
		{[5]string{"full", "pct:25", "!0", "default", "gif"}, 100, 75},
		{[5]string{"full", "150,150", "0", "default", "tif"}, 150, 150},
	}

	for _, test := range tests {
		tr, err := p.Parse(test.params[0], test.params[1], test.params[2], test.params[3], test.params[4])
		if err != nil {
			t.Fatal(err)
		}
		plan, err := tr.Plan(img.Width(), img.Height())
		if err != nil {
			t.Fatal(err)
		}
		out, err := img.Transform(plan)
		if err != nil {
			t.Errorf("unexpected error for %v: %s", test.params, err)
			continue
		}
		result, err := imaging.Decode(bytes.NewReader(out))
		if err != nil {
			t.Errorf("cannot decode the output of %v: %s", test.params, err)
			continue
		}
		if b := result.Bounds(); b.Dx() != test.width || b.Dy() != test.height {
			t.Errorf("sizes do not match for %v: got %vx%v want %vx%v", test.params, b.Dx(), b.Dy(), test.width, test.height)
		}
	}
}

func TestImagingArbitraryRotation(t *testing.T) {
	img, err := NewImagingDecoder().Decode(newFixture(t, 100, 100))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := NewParser(false, nil).Parse("full", "max", "45", "default", "png")
	if err != nil {
		t.Fatal(err)
	}
	plan, err := tr.Plan(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	out, err := img.Transform(plan)
	if err != nil {
		t.Fatal(err)
	}
	result, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if result.Bounds().Dx() <= 100 {
		t.Errorf("a 45 degrees rotation should grow the bounds, got %v", result.Bounds())
	}
}

func TestImagingFailing(t *testing.T) {
	d := NewImagingDecoder()
	if _, err := d.Decode([]byte("hello, world\n")); !errors.Is(err, ErrUnreadable) {
		t.Errorf("got %#v want %#v", err, ErrUnreadable)
	}

	img, err := d.Decode(newFixture(t, 10, 10))
	if err != nil {
		t.Fatal(err)
	}
	for _, format := range []string{"webp", "jp2", "pdf"} {
		tr, err := NewParser(false, nil).Parse("full", "max", "0", "default", format)
		if err != nil {
			t.Fatal(err)
		}
		plan, _ := tr.Plan(10, 10)
		if _, err := img.Transform(plan); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: got %#v want %#v", format, err, ErrUnsupportedFormat)
		}
	}
}
