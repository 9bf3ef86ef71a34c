//go:build vips

package vips

import (
	"testing"

	"gopkg.in/h2non/bimg.v1"

	"github.com/greut/sipi/image"
)

func plan(w, h int, rot image.Rotation, q image.Quality, format string) *image.Plan {
	f, _ := image.DefaultFormats().Lookup(format)
	return &image.Plan{
		SourceWidth:  400,
		SourceHeight: 300,
		Crop:         image.Box{W: 400, H: 300},
		Size:         image.ResolvedSize{Width: w, Height: h},
		Rotation:     rot,
		Quality:      q,
		Format:       f,
	}
}

func TestOptions(t *testing.T) {
	var tests = []struct {
		plan   *image.Plan
		width  int
		angle  bimg.Angle
		flop   bool
		interp bimg.Interpretation
	}{
		{plan(400, 300, image.Rotation{}, image.DefaultQuality, "jpg"), 0, bimg.D0, false, 0},
		{plan(200, 150, image.Rotation{Angle: 90}, image.DefaultQuality, "png"), 200, bimg.D90, false, 0},
		{plan(200, 150, image.Rotation{Angle: 90, Mirror: true}, image.DefaultQuality, "png"), 200, bimg.D270, true, 0},
		{plan(400, 300, image.Rotation{Angle: 450}, image.GrayQuality, "jpg"), 0, bimg.D90, false, bimg.InterpretationBW},
	}

	for _, test := range tests {
		opts, err := options(test.plan, 85)
		if err != nil {
			t.Fatal(err)
		}
		if opts.Width != test.width || opts.Rotate != test.angle || opts.Flop != test.flop || opts.Interpretation != test.interp {
			t.Errorf("got %#v", opts)
		}
	}
}

func TestOptionsErrors(t *testing.T) {
	var tests = []struct {
		plan *image.Plan
		err  error
	}{
		{plan(400, 300, image.Rotation{Angle: 22.5}, image.DefaultQuality, "jpg"), image.ErrUnsupportedRotation},
		{plan(400, 300, image.Rotation{}, image.BitonalQuality, "jpg"), image.ErrUnsupportedQuality},
	}

	for _, test := range tests {
		_, err := options(test.plan, 85)
		if err != test.err {
			t.Errorf("got %#v want %#v", err, test.err)
		}
	}
}
