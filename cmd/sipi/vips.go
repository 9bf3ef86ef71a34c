//go:build vips

package main

import (
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/image/vips"
)

func init() {
	renderers["vips"] = func() image.Decoder { return vips.New() }
}
