package model

import (
	"fmt"
	"strings"

	"golang.org/x/image/colornames"
)

// Layer names, in the order every run produces them.
const (
	LayerHistorical = "historical_ndsi"
	LayerRecent     = "recent_ndsi"
	LayerDifference = "ndsi_difference"
)

// Snow-cover layers are exported on request; they are not part of the rendered run.
const (
	LayerHistoricalSnow = "historical_snow_cover"
	LayerRecentSnow     = "recent_snow_cover"
)

// LayerNames lists the three layers of a run in display order.
func LayerNames() []string {
	return []string{LayerHistorical, LayerRecent, LayerDifference}
}

// LayerStyle binds a raster to a color ramp over [Min, Max].
type LayerStyle struct {
	Palette []string `json:"palette"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
}

// DefaultIndexStyle is a blue-to-white snow ramp over [0, 1].
func DefaultIndexStyle() LayerStyle {
	return LayerStyle{
		Palette: []string{"#08306b", "#2171b5", "#6baed6", "#c6dbef", "#ffffff"},
		Min:     0,
		Max:     1,
	}
}

// DefaultDifferenceStyle is diverging over [-1, 1]: blue = snow loss, red = snow gain.
func DefaultDifferenceStyle() LayerStyle {
	return LayerStyle{
		Palette: []string{"#2166ac", "#ffffff", "#b2182b"},
		Min:     -1,
		Max:     1,
	}
}

// DefaultSnowStyle shows the binary snow-cover band: brown = bare, white = snow.
func DefaultSnowStyle() LayerStyle {
	return LayerStyle{
		Palette: []string{"brown", "white"},
		Min:     0,
		Max:     1,
	}
}

func (s LayerStyle) Validate(field string) error {
	if !(s.Min < s.Max) {
		return invalid(field, "min (%g) must be below max (%g)", s.Min, s.Max)
	}
	if len(s.Palette) < 2 {
		return invalid(field, "palette needs at least two colors")
	}
	for _, c := range s.Palette {
		if _, err := ResolveColor(c); err != nil {
			return invalid(field, "%v", err)
		}
	}
	return nil
}

// Resolved returns a copy with every palette entry normalised to #rrggbb.
func (s LayerStyle) Resolved() (LayerStyle, error) {
	out := LayerStyle{Min: s.Min, Max: s.Max, Palette: make([]string, len(s.Palette))}
	for i, c := range s.Palette {
		hex, err := ResolveColor(c)
		if err != nil {
			return LayerStyle{}, err
		}
		out.Palette[i] = hex
	}
	return out, nil
}

// ResolveColor accepts an SVG color name or a #rgb/#rrggbb literal.
func ResolveColor(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	if strings.HasPrefix(c, "#") {
		hex := c[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 || strings.Trim(hex, "0123456789abcdef") != "" {
			return "", fmt.Errorf("invalid color literal %q", c)
		}
		return "#" + hex, nil
	}
	rgba, ok := colornames.Map[c]
	if !ok {
		return "", fmt.Errorf("unknown color name %q", c)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B), nil
}
