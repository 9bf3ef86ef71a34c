package image

import (
	"fmt"
)

// Parser reads the IIIF path parameters. Strict rejects out of range
// percentages, negative reduce factors and rotations outside [0, 360]
// instead of clamping or accepting them.
type Parser struct {
	Strict  bool
	Formats FormatTable
}

func NewParser(strict bool, formats FormatTable) *Parser {
	if formats == nil {
		formats = DefaultFormats()
	}
	return &Parser{Strict: strict, Formats: formats}
}

// Transformation is a parsed IIIF request, independent of any image.
type Transformation struct {
	Region   *Region
	Size     *Size
	Rotation Rotation
	Quality  Quality
	Format   Format
}

func (p *Parser) Parse(region, size, rotation, quality, format string) (*Transformation, error) {
	r, err := ParseRegion(region)
	if err != nil {
		return nil, err
	}

	s, err := parseSize(size, p.Strict)
	if err != nil {
		return nil, err
	}

	rot, err := parseRotation(rotation, p.Strict)
	if err != nil {
		return nil, err
	}

	q, err := ParseQuality(quality)
	if err != nil {
		return nil, err
	}

	f, err := p.Formats.Lookup(format)
	if err != nil {
		return nil, err
	}

	return &Transformation{
		Region:   r,
		Size:     s,
		Rotation: rot,
		Quality:  q,
		Format:   f,
	}, nil
}

// Plan is a transformation bound to an image of a known size.
type Plan struct {
	SourceWidth  int
	SourceHeight int
	Crop         Box
	Size         ResolvedSize
	Rotation     Rotation
	Quality      Quality
	Format       Format

	region string
	size   string
}

// Plan crops the image, then resolves the size against the cropped box.
func (t *Transformation) Plan(w, h int) (*Plan, error) {
	box, err := t.Region.Crop(w, h)
	if err != nil {
		return nil, err
	}

	resolved, err := t.Size.Resolve(box.W, box.H)
	if err != nil {
		return nil, err
	}

	size, err := canonicalSize(t.Size, resolved, box)
	if err != nil {
		return nil, err
	}

	return &Plan{
		SourceWidth:  w,
		SourceHeight: h,
		Crop:         box,
		Size:         resolved,
		Rotation:     t.Rotation,
		Quality:      t.Quality,
		Format:       t.Format,
		region:       box.Canonical(w, h),
		size:         size,
	}, nil
}

// canonicalSize is the size part of a plan path. The "w," form of
// Canonical is kept when it resolves back to the same output against box,
// "w,h" is used otherwise so one path never names two different images.
func canonicalSize(s *Size, resolved ResolvedSize, box Box) (string, error) {
	canonical, err := s.Canonical()
	if err != nil {
		return "", err
	}
	if s.Type == FullSize || s.Type == PixelsXYSize {
		return canonical, nil
	}

	if again, err := ParseSize(canonical); err == nil {
		if r, err := again.Resolve(box.W, box.H); err == nil && sameOutput(r, resolved) {
			return canonical, nil
		}
	}
	return fmt.Sprintf("%d,%d", resolved.Width, resolved.Height), nil
}

// sameOutput compares what a renderer looks at: the dimensions and whether
// halving alone produces them.
func sameOutput(a, b ResolvedSize) bool {
	return a.Width == b.Width && a.Height == b.Height && a.ReduceOnly == b.ReduceOnly
}

// Cropped tells whether the plan uses only part of the source.
func (p *Plan) Cropped() bool {
	return !p.Crop.IsFull(p.SourceWidth, p.SourceHeight)
}

// Resized tells whether the output differs in size from the crop box.
func (p *Plan) Resized() bool {
	return p.Size.Width != p.Crop.W || p.Size.Height != p.Crop.H
}

// Canonical is the canonical "region/size/rotation/quality.format" path.
func (p *Plan) Canonical() string {
	return fmt.Sprintf("%s/%s/%s/%s.%s",
		p.region, p.size, p.Rotation.Canonical(), p.Quality, p.Format.Name)
}

// Path prefixes the canonical form with the identifier, which makes it a
// suitable cache key.
func (p *Plan) Path(identifier string) string {
	return identifier + "/" + p.Canonical()
}
