package image

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type RegionType int

const (
	FullRegion RegionType = iota
	SquareRegion
	PixelsRegion
	PercentRegion
)

// Region is a parsed IIIF region.
type Region struct {
	Type RegionType
	// X, Y, W and H are in pixels for PixelsRegion.
	X int
	Y int
	W int
	H int
	// Percent holds x, y, w and h for PercentRegion.
	Percent [4]float64
}

// Box is a crop rectangle in source pixels.
type Box struct {
	X int
	Y int
	W int
	H int
}

func ParseRegion(input string) (*Region, error) {
	switch input {
	case "", "full":
		return &Region{Type: FullRegion}, nil
	case "square":
		return &Region{Type: SquareRegion}, nil
	}

	r := &Region{Type: PixelsRegion}
	value := input
	if strings.HasPrefix(value, "pct:") {
		r.Type = PercentRegion
		value = value[4:]
	}

	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, parseError("region", input, "expected x,y,w,h")
	}

	if r.Type == PercentRegion {
		for i, part := range parts {
			n, err := strconv.ParseFloat(part, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, parseError("region", input, "")
			}
			r.Percent[i] = n
		}
		if r.Percent[0] < 0 || r.Percent[1] < 0 {
			return nil, parseError("region", input, "negative origin")
		}
		if r.Percent[2] <= 0 || r.Percent[3] <= 0 {
			return nil, parseError("region", input, "width and height must be positive")
		}
		return r, nil
	}

	var numbers [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, parseError("region", input, "")
		}
		numbers[i] = n
	}

	r.X, r.Y, r.W, r.H = numbers[0], numbers[1], numbers[2], numbers[3]
	if r.X < 0 || r.Y < 0 {
		return nil, parseError("region", input, "negative origin")
	}
	if r.W <= 0 || r.H <= 0 {
		return nil, parseError("region", input, "width and height must be positive")
	}
	return r, nil
}

// Crop turns the region into a box within an image of w by h pixels. A
// region overflowing the image is cut at its edges.
func (r *Region) Crop(w, h int) (Box, error) {
	switch r.Type {
	case FullRegion:
		return Box{0, 0, w, h}, nil

	case SquareRegion:
		if w < h {
			return Box{0, (h - w) / 2, w, w}, nil
		}
		return Box{(w - h) / 2, 0, h, h}, nil
	}

	x, y, bw, bh := r.X, r.Y, r.W, r.H
	if r.Type == PercentRegion {
		// past 100% a region is cut at the edges anyway
		px, py := math.Min(r.Percent[0], 100), math.Min(r.Percent[1], 100)
		pw, ph := math.Min(r.Percent[2], 100), math.Min(r.Percent[3], 100)
		x = int(math.Floor(float64(w) * px / 100))
		y = int(math.Floor(float64(h) * py / 100))
		bw = int(math.Ceil(float64(w) * pw / 100))
		bh = int(math.Ceil(float64(h) * ph / 100))
	}

	if x >= w || y >= h {
		return Box{}, parseError("region", r.String(), "region lies outside of the image")
	}
	if bw > w-x {
		bw = w - x
	}
	if bh > h-y {
		bh = h - y
	}
	return Box{x, y, atLeastOne(bw), atLeastOne(bh)}, nil
}

// IsFull tells whether the box covers the whole w by h image.
func (b Box) IsFull(w, h int) bool {
	return b.X == 0 && b.Y == 0 && b.W == w && b.H == h
}

// Canonical renders the box as "full" or "x,y,w,h".
func (b Box) Canonical(w, h int) string {
	if b.IsFull(w, h) {
		return "full"
	}
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.W, b.H)
}

func (r *Region) String() string {
	switch r.Type {
	case FullRegion:
		return "full"
	case SquareRegion:
		return "square"
	case PercentRegion:
		return fmt.Sprintf("pct:%s,%s,%s,%s", ftoa(r.Percent[0]), ftoa(r.Percent[1]), ftoa(r.Percent[2]), ftoa(r.Percent[3]))
	}
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.W, r.H)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
