package localeval

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"snowdiff_service/internal/graph"
)

func mean(vals []float64) float64 {
	return stat.Mean(vals, nil)
}

func (e *Evaluator) evalImageOp(ctx context.Context, n *graph.Node, env map[string]*Raster) (value, error) {
	in, err := e.evalImage(ctx, n.Input(0), env)
	if err != nil {
		return value{}, fmt.Errorf("%s: %w", n.Op(), err)
	}

	var out *Raster
	switch n.Op() {
	case graph.OpSelect:
		out, err = selectBands(n, in)
	case graph.OpBitwiseAnd:
		out, err = bitwiseAnd(n, in)
	case graph.OpEq:
		out, err = eq(n, in)
	case graph.OpGt:
		out, err = gt(n, in)
	case graph.OpAnd:
		var rhs *Raster
		if rhs, err = e.evalImage(ctx, n.Input(1), env); err == nil {
			out, err = and(in, rhs)
		}
	case graph.OpUpdateMask:
		var mask *Raster
		if mask, err = e.evalImage(ctx, n.Input(1), env); err == nil {
			out, err = updateMask(in, mask)
		}
	case graph.OpNormalizedDifference:
		out, err = normalizedDifference(n, in)
	case graph.OpSubtract:
		var rhs *Raster
		if rhs, err = e.evalImage(ctx, n.Input(1), env); err == nil {
			out, err = subtract(in, rhs)
		}
	case graph.OpClip:
		out, err = clip(n, in)
	case graph.OpRename:
		out, err = rename(n, in)
	default:
		err = fmt.Errorf("unsupported operation")
	}
	if err != nil {
		return value{}, fmt.Errorf("%s: %w", n.Op(), err)
	}
	return value{image: out}, nil
}

// mapBands builds a new raster by applying f to every band of in.
func mapBands(in *Raster, f func(src, dst *Band)) (*Raster, error) {
	out := NewRaster(in.Grid)
	for _, name := range in.BandNames() {
		src, _ := in.Band(name)
		dst := NewBand(in.Grid.Len())
		f(src, dst)
		if err := out.AddBand(name, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func selectBands(n *graph.Node, in *Raster) (*Raster, error) {
	names, err := n.StringsParam("bands")
	if err != nil {
		return nil, err
	}
	out := NewRaster(in.Grid)
	for _, name := range names {
		b, err := in.Band(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddBand(name, b); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func bitwiseAnd(n *graph.Node, in *Raster) (*Raster, error) {
	mask, err := n.IntParam("value")
	if err != nil {
		return nil, err
	}
	return mapBands(in, func(src, dst *Band) {
		for i, v := range src.Values {
			if src.Valid[i] {
				dst.Set(i, float64(int64(v)&mask))
			}
		}
	})
}

func eq(n *graph.Node, in *Raster) (*Raster, error) {
	want, err := n.FloatParam("value")
	if err != nil {
		return nil, err
	}
	return mapBands(in, func(src, dst *Band) {
		for i, v := range src.Values {
			if !src.Valid[i] {
				continue
			}
			if v == want {
				dst.Set(i, 1)
			} else {
				dst.Set(i, 0)
			}
		}
	})
}

func gt(n *graph.Node, in *Raster) (*Raster, error) {
	threshold, err := n.FloatParam("value")
	if err != nil {
		return nil, err
	}
	return mapBands(in, func(src, dst *Band) {
		for i, v := range src.Values {
			if !src.Valid[i] {
				continue
			}
			if v > threshold {
				dst.Set(i, 1)
			} else {
				dst.Set(i, 0)
			}
		}
	})
}

// and pairs bands by position like subtract and writes 1 where both are non-zero.
func and(lhs, rhs *Raster) (*Raster, error) {
	return pairBands(lhs, rhs, func(a, b float64) float64 {
		if a != 0 && b != 0 {
			return 1
		}
		return 0
	})
}

// updateMask keeps a pixel only where the mask holds data and is non-zero. A
// single-band mask applies to every band.
func updateMask(in, mask *Raster) (*Raster, error) {
	if in.Grid != mask.Grid {
		return nil, fmt.Errorf("mask grid differs from image grid")
	}
	maskNames := mask.BandNames()
	if len(maskNames) != 1 && len(maskNames) != len(in.BandNames()) {
		return nil, fmt.Errorf("mask has %d bands, image has %d", len(maskNames), len(in.BandNames()))
	}

	out := NewRaster(in.Grid)
	for bi, name := range in.BandNames() {
		src, _ := in.Band(name)
		m, _ := mask.Band(maskNames[0])
		if len(maskNames) > 1 {
			m, _ = mask.Band(maskNames[bi])
		}
		dst := NewBand(in.Grid.Len())
		for i := range src.Values {
			if mv, ok := m.At(i); ok && mv != 0 && src.Valid[i] {
				dst.Set(i, src.Values[i])
			}
		}
		if err := out.AddBand(name, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalizedDifference writes (a-b)/(a+b) into band "nd"; a zero sum is no data.
func normalizedDifference(n *graph.Node, in *Raster) (*Raster, error) {
	names, err := n.StringsParam("bands")
	if err != nil {
		return nil, err
	}
	if len(names) != 2 {
		return nil, fmt.Errorf("needs exactly two bands, got %d", len(names))
	}
	a, err := in.Band(names[0])
	if err != nil {
		return nil, err
	}
	b, err := in.Band(names[1])
	if err != nil {
		return nil, err
	}

	nd := NewBand(in.Grid.Len())
	for i := range nd.Values {
		av, aok := a.At(i)
		bv, bok := b.At(i)
		if !aok || !bok || av+bv == 0 {
			continue
		}
		nd.Set(i, (av-bv)/(av+bv))
	}
	out := NewRaster(in.Grid)
	return out, out.AddBand("nd", nd)
}

// subtract pairs bands by position and keeps the left-hand band names.
func subtract(lhs, rhs *Raster) (*Raster, error) {
	return pairBands(lhs, rhs, func(a, b float64) float64 { return a - b })
}

// pairBands combines bands by position where both operands hold data, keeping the
// left-hand band names.
func pairBands(lhs, rhs *Raster, f func(a, b float64) float64) (*Raster, error) {
	if lhs.Grid != rhs.Grid {
		return nil, fmt.Errorf("operand grids differ")
	}
	ln, rn := lhs.BandNames(), rhs.BandNames()
	if len(ln) != len(rn) {
		return nil, fmt.Errorf("operands have %d and %d bands", len(ln), len(rn))
	}

	out := NewRaster(lhs.Grid)
	for bi, name := range ln {
		a, _ := lhs.Band(name)
		b, _ := rhs.Band(rn[bi])
		dst := NewBand(lhs.Grid.Len())
		for i := range dst.Values {
			av, aok := a.At(i)
			bv, bok := b.At(i)
			if aok && bok {
				dst.Set(i, f(av, bv))
			}
		}
		if err := out.AddBand(name, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func clip(n *graph.Node, in *Raster) (*Raster, error) {
	region, err := n.RegionParam("geometry")
	if err != nil {
		return nil, err
	}
	g := in.Grid
	inside := make([]bool, g.Len())
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			inside[row*g.Width+col] = region.Contains(g.Center(col, row))
		}
	}
	return mapBands(in, func(src, dst *Band) {
		for i, v := range src.Values {
			if src.Valid[i] && inside[i] {
				dst.Set(i, v)
			}
		}
	})
}

func rename(n *graph.Node, in *Raster) (*Raster, error) {
	name, err := n.StringParam("name")
	if err != nil {
		return nil, err
	}
	_, b, err := in.First()
	if err != nil {
		return nil, err
	}
	if len(in.BandNames()) != 1 {
		return nil, fmt.Errorf("rename needs a single-band image, got %d bands", len(in.BandNames()))
	}
	out := NewRaster(in.Grid)
	return out, out.AddBand(name, b)
}
