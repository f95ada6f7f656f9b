package localeval

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"

	"golang.org/x/image/draw"

	"snowdiff_service/internal/domain/model"
)

// previewSize is the minimum edge length of a rendered preview, in pixels.
const previewSize = 256

// renderPNG paints the first band of r through the style's palette. No-data pixels
// are transparent.
func renderPNG(r *Raster, style model.LayerStyle) ([]byte, error) {
	resolved, err := style.Resolved()
	if err != nil {
		return nil, err
	}
	stops := make([]color.NRGBA, len(resolved.Palette))
	for i, hex := range resolved.Palette {
		if stops[i], err = parseHex(hex); err != nil {
			return nil, err
		}
	}
	_, band, err := r.First()
	if err != nil {
		return nil, err
	}

	g := r.Grid
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v, ok := band.At(row*g.Width + col)
			if !ok {
				continue
			}
			img.SetNRGBA(col, row, ramp(stops, resolved.Min, resolved.Max, v))
		}
	}

	var out image.Image = img
	if scale := int(math.Ceil(float64(previewSize) / float64(max(g.Width, g.Height)))); scale > 1 {
		dst := image.NewNRGBA(image.Rect(0, 0, g.Width*scale, g.Height*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// ramp interpolates linearly between evenly spaced palette stops. Values outside
// [lo, hi] take the end colors.
func ramp(stops []color.NRGBA, lo, hi, v float64) color.NRGBA {
	t := (v - lo) / (hi - lo)
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(stops)-1)
	i := int(math.Floor(pos))
	if i >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	f := pos - float64(i)
	a, b := stops[i], stops[i+1]
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + f*(float64(y)-float64(x)))) }
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func parseHex(hex string) (color.NRGBA, error) {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", hex)
	}
	n, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, nil
}
