package image

import (
	"errors"
	"testing"
)

func TestRegionCrop(t *testing.T) {
	var tests = []struct {
		input string
		box   Box
	}{
		{"full", Box{0, 0, 400, 300}},
		{"square", Box{50, 0, 300, 300}},
		{"10,20,100,50", Box{10, 20, 100, 50}},
		{"350,250,100,100", Box{350, 250, 50, 50}},
		{"pct:10,10,50,50", Box{40, 30, 200, 150}},
		{"pct:0,0,100,100", Box{0, 0, 400, 300}},
		{"1,0,9223372036854775807,10", Box{1, 0, 399, 10}},
		{"0,299,10,9223372036854775807", Box{0, 299, 10, 1}},
		{"pct:50,0,1e300,10", Box{200, 0, 200, 30}},
	}

	for _, test := range tests {
		r, err := ParseRegion(test.input)
		if err != nil {
			t.Errorf("unexpected error for %#v: %s", test.input, err)
			continue
		}
		box, err := r.Crop(400, 300)
		if err != nil {
			t.Errorf("unexpected error cropping %#v: %s", test.input, err)
			continue
		}
		if box != test.box {
			t.Errorf("crop of %#v: got %#v want %#v", test.input, box, test.box)
		}
	}

	r, _ := ParseRegion("square")
	box, _ := r.Crop(300, 400)
	if want := (Box{0, 50, 300, 300}); box != want {
		t.Errorf("portrait square: got %#v want %#v", box, want)
	}
}

func TestRegionFailing(t *testing.T) {
	for _, input := range []string{"10", "10,10", "10,10,10", "10,10,10,10,10", "-10,10,10,10", "10,10,0,0", "a,b,c,d", "pct:a,0,10,10", "pct:0,0,NaN,10", "99999999999999999999,0,10,10", "smart"} {
		_, err := ParseRegion(input)
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Param != "region" {
			t.Errorf("expected a region ParseError for %#v, got %#v", input, err)
		}
	}

	r, err := ParseRegion("400,0,10,10")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Crop(400, 300); err == nil {
		t.Errorf("a region outside of the image should fail")
	}
}

func TestBoxCanonical(t *testing.T) {
	if c := (Box{0, 0, 400, 300}).Canonical(400, 300); c != "full" {
		t.Errorf("got %#v want %#v", c, "full")
	}
	if c := (Box{50, 0, 300, 300}).Canonical(400, 300); c != "50,0,300,300" {
		t.Errorf("got %#v want %#v", c, "50,0,300,300")
	}
}
