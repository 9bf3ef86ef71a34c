// Package profile builds the IIIF 2.1 image information document.
package profile

import (
	"encoding/json"
	"sort"

	"github.com/greut/sipi/image"
)

const (
	Context  = "http://iiif.io/api/image/2/context.json"
	Protocol = "http://iiif.io/api/image"
	Level2   = "http://iiif.io/api/image/2/level2.json"
)

// DefaultTileSize is the tile edge advertised in info.json.
const DefaultTileSize = 512

// ImageProfile contains the technical properties about the service.
type ImageProfile struct {
	Context   string   `json:"@context,omitempty"`
	ID        string   `json:"@id,omitempty"`
	Type      string   `json:"@type,omitempty"` // empty or iiif:ImageProfile
	Formats   []string `json:"formats"`
	MaxArea   int      `json:"maxArea,omitempty"`
	MaxHeight int      `json:"maxHeight,omitempty"`
	MaxWidth  int      `json:"maxWidth,omitempty"`
	Qualities []string `json:"qualities"`
	Supports  []string `json:"supports,omitempty"`
}

// Size contains the information for the available sizes
type Size struct {
	Type   string `json:"@type,omitempty"` // empty or iiif:Size
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Tile contains the information to deal with tiles.
type Tile struct {
	Type         string `json:"@type,omitempty"` // empty or iiif:Tile
	ScaleFactors []int  `json:"scaleFactors"`
	Width        int    `json:"width"`
	Height       int    `json:"height,omitempty"`
}

// Image contains the technical properties about an image.
type Image struct {
	Context  string `json:"@context"`
	ID       string `json:"@id"`
	Type     string `json:"@type,omitempty"` // empty or iiif:Image
	Protocol string `json:"protocol"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Profile  []any  `json:"profile"`
	Sizes    []Size `json:"sizes,omitempty"`
	Tiles    []Tile `json:"tiles,omitempty"`
}

// Limits are the server wide size limits, zero meaning unlimited.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	MaxArea   int
}

// Allows tells whether a w by h output is within the limits.
func (l Limits) Allows(w, h int) bool {
	if l.MaxWidth > 0 && w > l.MaxWidth {
		return false
	}
	if l.MaxHeight > 0 && h > l.MaxHeight {
		return false
	}
	if l.MaxArea > 0 && w*h > l.MaxArea {
		return false
	}
	return true
}

var baseSupports = []string{
	"baseUriRedirect",
	"canonicalLinkHeader",
	"cors",
	"jsonldMediaType",
	"profileLinkHeader",
	"regionByPct",
	"regionByPx",
	"regionSquare",
	"rotationBy90s",
	"sizeAboveFull",
	"sizeByConfinedWh",
	"sizeByDistortedWh",
	"sizeByH",
	"sizeByPct",
	"sizeByW",
	"sizeByWh",
}

// Supports lists the IIIF features of a renderer.
func Supports(features image.Features) []string {
	supports := append([]string{}, baseSupports...)
	if features.Mirroring {
		supports = append(supports, "mirroring")
	}
	if features.ArbitraryRotation {
		supports = append(supports, "rotationArbitrary")
	}
	sort.Strings(supports)
	return supports
}

// New describes a width by height image served at id.
func New(id string, width, height int, features image.Features, limits Limits, tileSize int) *Image {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}

	qualities := make([]string, 0, len(features.Qualities))
	for _, q := range features.Qualities {
		qualities = append(qualities, string(q))
	}
	sort.Strings(qualities)

	formats := append([]string{}, features.Formats...)
	sort.Strings(formats)

	return &Image{
		Context:  Context,
		ID:       id,
		Type:     "iiif:Image",
		Protocol: Protocol,
		Width:    width,
		Height:   height,
		Profile: []any{
			Level2,
			&ImageProfile{
				Context:   Context,
				Type:      "iiif:ImageProfile",
				Formats:   formats,
				Qualities: qualities,
				MaxWidth:  limits.MaxWidth,
				MaxHeight: limits.MaxHeight,
				MaxArea:   limits.MaxArea,
				Supports:  Supports(features),
			},
		},
		Sizes: Sizes(width, height, limits, tileSize),
		Tiles: Tiles(width, height, tileSize),
	}
}

// levels is the number of halvings after which the image fits in a tile.
func levels(width, height, tileSize int) int {
	k := 0
	for {
		r, err := image.NewReduceSize(k).Resolve(width, height)
		if err != nil || (r.Width <= tileSize && r.Height <= tileSize) {
			return k
		}
		k++
	}
}

// Sizes lists the red:k resolutions, smallest first, that the limits allow.
// These are served without resampling.
func Sizes(width, height int, limits Limits, tileSize int) []Size {
	if width <= 0 || height <= 0 {
		return nil
	}

	var sizes []Size
	for k := levels(width, height, tileSize); k >= 0; k-- {
		r, err := image.NewReduceSize(k).Resolve(width, height)
		if err != nil {
			continue
		}
		if !limits.Allows(r.Width, r.Height) {
			continue
		}
		sizes = append(sizes, Size{Width: r.Width, Height: r.Height})
	}
	return sizes
}

// Tiles advertises square tiles with power of two scale factors.
func Tiles(width, height, tileSize int) []Tile {
	if width <= 0 || height <= 0 {
		return nil
	}

	n := levels(width, height, tileSize)
	factors := make([]int, 0, n+1)
	for k := 0; k <= n; k++ {
		factors = append(factors, 1<<k)
	}

	return []Tile{{ScaleFactors: factors, Width: tileSize}}
}

// JSON renders the document the way info.json is served.
func (i *Image) JSON() ([]byte, error) {
	return json.MarshalIndent(i, "", "  ")
}
