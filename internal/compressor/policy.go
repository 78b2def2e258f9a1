package compressor

import "math"

// ResizeDirective tells the re-encoder which dimensions to produce.
// A zero directive means the image passes through at its own size.
type ResizeDirective struct {
	Width  int
	Height int
}

// NoOp reports whether no resize is needed.
func (d ResizeDirective) NoOp() bool {
	return d.Width == 0 && d.Height == 0
}

// Fit computes a fit-inside resize of width x height into b. Images already
// inside the box are never enlarged.
func Fit(width, height int, b Bounds) ResizeDirective {
	if b.MaxWidth <= 0 || b.MaxHeight <= 0 || width <= 0 || height <= 0 {
		return ResizeDirective{}
	}
	if width <= b.MaxWidth && height <= b.MaxHeight {
		return ResizeDirective{}
	}

	scale := math.Min(float64(b.MaxWidth)/float64(width), float64(b.MaxHeight)/float64(height))
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))

	w = min(max(w, 1), b.MaxWidth)
	h = min(max(h, 1), b.MaxHeight)
	return ResizeDirective{Width: w, Height: h}
}
