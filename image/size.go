package image

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SizeType is the variant of an IIIF size request.
type SizeType int

const (
	FullSize SizeType = iota
	PercentSize
	ReduceSize
	PixelsXSize
	PixelsYSize
	PixelsXYSize
	MaxDimSize
)

// percentTolerance is how close 2^k has to be to 100/p for a percent
// request to be served by halving alone.
const percentTolerance = 1e-5

// ResolvedSize is the outcome of resolving a size against an image.
type ResolvedSize struct {
	Width  int
	Height int
	// Reduce is the number of halvings applied to the source.
	Reduce int
	// ReduceOnly is set when halving alone yields Width and Height.
	ReduceOnly bool
}

// Size is a parsed IIIF size. It caches the last resolution so it can be
// compared and canonicalized, so a Size belongs to a single request.
type Size struct {
	Type    SizeType
	Width   int
	Height  int
	Percent float64
	Reduce  int

	resolved *ResolvedSize
}

func NewFullSize() *Size {
	return &Size{Type: FullSize}
}

// NewPercentSize clamps p into (0, 100].
func NewPercentSize(p float64) *Size {
	return &Size{Type: PercentSize, Percent: clampPercent(p)}
}

// NewReduceSize coerces a negative reduce factor to 0.
func NewReduceSize(r int) *Size {
	if r < 0 {
		r = 0
	}
	return &Size{Type: ReduceSize, Reduce: r}
}

// NewPixelsSize builds a PixelsXY size, or PixelsX when h is zero and
// PixelsY when w is zero.
func NewPixelsSize(w, h int) *Size {
	switch {
	case h <= 0:
		return &Size{Type: PixelsXSize, Width: w}
	case w <= 0:
		return &Size{Type: PixelsYSize, Height: h}
	default:
		return &Size{Type: PixelsXYSize, Width: w, Height: h}
	}
}

func NewMaxDimSize(w, h int) *Size {
	return &Size{Type: MaxDimSize, Width: w, Height: h}
}

// ParseSize reads an IIIF 2.1 size parameter with the lenient rules:
// percentages are clamped and negative reduce factors become 0.
func ParseSize(input string) (*Size, error) {
	return parseSize(input, false)
}

func parseSize(input string, strict bool) (*Size, error) {
	switch {
	case input == "" || input == "full" || input == "max":
		return NewFullSize(), nil

	case strings.Contains(input, "pct"):
		value := strings.TrimPrefix(input, "pct:")
		if value == input {
			return nil, parseError("size", input, "expected pct:n")
		}
		p, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, parseError("size", input, "invalid percentage")
		}
		if strict && (p <= 0 || p > 100) {
			return nil, parseError("size", input, "percentage out of (0, 100]")
		}
		return NewPercentSize(p), nil

	case strings.Contains(input, "red"):
		value := strings.TrimPrefix(input, "red:")
		if value == input {
			return nil, parseError("size", input, "expected red:n")
		}
		r, err := strconv.Atoi(value)
		if err != nil {
			return nil, parseError("size", input, "invalid reduce factor")
		}
		if strict && r < 0 {
			return nil, parseError("size", input, "negative reduce factor")
		}
		return NewReduceSize(r), nil

	case strings.HasPrefix(input, "!"):
		parts := strings.Split(input[1:], ",")
		if len(parts) != 2 {
			return nil, parseError("size", input, "expected !w,h")
		}
		w, errW := parsePixels(parts[0])
		h, errH := parsePixels(parts[1])
		if errW != nil || errH != nil {
			return nil, parseError("size", input, "expected !w,h")
		}
		return NewMaxDimSize(w, h), nil
	}

	parts := strings.Split(input, ",")
	switch {
	case len(parts) == 1:
		w, err := parsePixels(parts[0])
		if err != nil {
			return nil, parseError("size", input, "")
		}
		return NewPixelsSize(w, 0), nil

	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		w, errW := parsePixels(parts[0])
		h, errH := parsePixels(parts[1])
		if errW != nil || errH != nil {
			return nil, parseError("size", input, "expected w,h")
		}
		return NewPixelsSize(w, h), nil

	case len(parts) == 2 && parts[0] != "":
		w, err := parsePixels(parts[0])
		if err != nil {
			return nil, parseError("size", input, "expected w,")
		}
		return NewPixelsSize(w, 0), nil

	case len(parts) == 2 && parts[1] != "":
		h, err := parsePixels(parts[1])
		if err != nil {
			return nil, parseError("size", input, "expected ,h")
		}
		return NewPixelsSize(0, h), nil
	}

	return nil, parseError("size", input, "")
}

// parsePixels accepts a strictly positive decimal integer without sign.
func parsePixels(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("empty value")
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%q is not a number", value)
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

func clampPercent(p float64) float64 {
	switch {
	case p > 100:
		return 100
	case p <= 0:
		return 1
	}
	return p
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// halve divides n by 2^k, rounding up, without overflowing for large k.
func halve(n, k int) int {
	for i := 0; i < k && n > 1; i++ {
		n = ceilDiv(n, 2)
	}
	return n
}

// reduction finds the smallest k where halving src k times fits target. It
// reports whether that k hits target exactly, otherwise it backs off by one
// level so the result never undershoots.
func reduction(src, target int) (int, bool) {
	k := 0
	for halve(src, k) > target {
		k++
	}
	if halve(src, k) == target {
		return k, true
	}
	if k > 0 {
		k--
	}
	return k, false
}

// Resolve computes the output dimensions for an image of srcW by srcH
// pixels. The result is kept for later comparisons and Canonical.
func (s *Size) Resolve(srcW, srcH int) (ResolvedSize, error) {
	if srcW <= 0 || srcH <= 0 {
		return ResolvedSize{}, fmt.Errorf("size: cannot resolve against %dx%d", srcW, srcH)
	}

	var r ResolvedSize
	switch s.Type {
	case FullSize:
		r = ResolvedSize{Width: srcW, Height: srcH, Reduce: 0, ReduceOnly: true}

	case PixelsXYSize:
		kw, exactW := reduction(srcW, s.Width)
		kh, exactH := reduction(srcH, s.Height)
		r = ResolvedSize{Width: s.Width, Height: s.Height}
		if exactW && exactH && kw == kh {
			r.Reduce = kw
			r.ReduceOnly = true
		} else {
			r.Reduce = kw
			if kh < kw {
				r.Reduce = kh
			}
		}

	case PixelsXSize:
		r = resolveAxis(srcW, srcH, s.Width)

	case PixelsYSize:
		r = resolveAxis(srcH, srcW, s.Height)
		r.Width, r.Height = r.Height, r.Width

	case PercentSize:
		p := clampPercent(s.Percent)
		r.Width = atLeastOne(int(math.Ceil(float64(srcW) * p / 100)))
		r.Height = atLeastOne(int(math.Ceil(float64(srcH) * p / 100)))
		ratio := 100 / p
		k := 0
		for math.Ldexp(1, k+1) <= ratio+percentTolerance {
			k++
		}
		r.Reduce = k
		r.ReduceOnly = math.Abs(math.Ldexp(1, k)-ratio) < percentTolerance

	case ReduceSize:
		red := s.Reduce
		if red < 0 {
			red = 0
		}
		r = ResolvedSize{
			Width:      halve(srcW, red),
			Height:     halve(srcH, red),
			Reduce:     red,
			ReduceOnly: true,
		}

	case MaxDimSize:
		fx := float64(s.Width) / float64(srcW)
		fy := float64(s.Height) / float64(srcH)
		if fx <= fy {
			r = resolveAxis(srcW, srcH, s.Width)
		} else {
			r = resolveAxis(srcH, srcW, s.Height)
			r.Width, r.Height = r.Height, r.Width
		}

	default:
		return ResolvedSize{}, fmt.Errorf("size: unknown size type %d", s.Type)
	}

	s.resolved = &r
	return r, nil
}

// resolveAxis fixes the main axis to target and derives the other one, by
// the same reduce factor when halving is exact, proportionally otherwise.
// The returned Width is the main axis.
func resolveAxis(main, other, target int) ResolvedSize {
	k, exact := reduction(main, target)
	r := ResolvedSize{Width: target, Reduce: k, ReduceOnly: exact}
	if exact {
		r.Height = halve(other, k)
	} else {
		r.Height = atLeastOne(ceilDiv(other*target, main))
	}
	return r
}

// Resolved returns the last resolution.
func (s *Size) Resolved() (ResolvedSize, error) {
	if s.resolved == nil {
		return ResolvedSize{}, &NotResolvedError{Op: "Resolved"}
	}
	return *s.resolved, nil
}

// Canonical renders the IIIF canonical form: "full", "w,h" or "w,".
func (s *Size) Canonical() (string, error) {
	if s.Type == FullSize {
		return "full", nil
	}
	if s.resolved == nil {
		return "", &NotResolvedError{Op: "Canonical"}
	}
	if s.Type == PixelsXYSize {
		return fmt.Sprintf("%d,%d", s.resolved.Width, s.resolved.Height), nil
	}
	return fmt.Sprintf("%d,", s.resolved.Width), nil
}

// String gives back the request form of the size.
func (s *Size) String() string {
	switch s.Type {
	case FullSize:
		return "full"
	case PercentSize:
		return "pct:" + strconv.FormatFloat(s.Percent, 'f', -1, 64)
	case ReduceSize:
		return "red:" + strconv.Itoa(s.Reduce)
	case PixelsXSize:
		return fmt.Sprintf("%d,", s.Width)
	case PixelsYSize:
		return fmt.Sprintf(",%d", s.Height)
	case PixelsXYSize:
		return fmt.Sprintf("%d,%d", s.Width, s.Height)
	case MaxDimSize:
		return fmt.Sprintf("!%d,%d", s.Width, s.Height)
	}
	return ""
}

func (s *Size) pair(other *Size, op string) (ResolvedSize, ResolvedSize, error) {
	if s.resolved == nil || other == nil || other.resolved == nil {
		return ResolvedSize{}, ResolvedSize{}, &NotResolvedError{Op: op}
	}
	return *s.resolved, *other.resolved, nil
}

// Greater is true when either axis is larger than other's.
func (s *Size) Greater(other *Size) (bool, error) {
	a, b, err := s.pair(other, "Greater")
	if err != nil {
		return false, err
	}
	return a.Width > b.Width || a.Height > b.Height, nil
}

func (s *Size) GreaterEqual(other *Size) (bool, error) {
	a, b, err := s.pair(other, "GreaterEqual")
	if err != nil {
		return false, err
	}
	return a.Width >= b.Width || a.Height >= b.Height, nil
}

// Less is true when both axes are smaller than other's.
func (s *Size) Less(other *Size) (bool, error) {
	a, b, err := s.pair(other, "Less")
	if err != nil {
		return false, err
	}
	return a.Width < b.Width && a.Height < b.Height, nil
}

func (s *Size) LessEqual(other *Size) (bool, error) {
	a, b, err := s.pair(other, "LessEqual")
	if err != nil {
		return false, err
	}
	return a.Width <= b.Width && a.Height <= b.Height, nil
}
