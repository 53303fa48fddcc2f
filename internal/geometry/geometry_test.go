package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name             string
		w, h, bleed      float64
		dpi              int
		wantPxW, wantPxH int
	}{
		{"48x24 default bleed", 48, 24, 0.125, 150, 7238, 3638},
		{"no bleed", 36, 12, 0, 150, 5400, 1800},
		{"half pixel rounds up", 4, 2, 0.125, 50, 213, 113},
		{"fractional size", 35.5, 17.25, 0.25, 100, 3600, 1775},
		{"low dpi", 120, 36, 0.125, 72, 8658, 2610},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := Resolve(tc.w, tc.h, tc.bleed, tc.dpi)
			assert.Equal(t, tc.wantPxW, g.TargetPxW)
			assert.Equal(t, tc.wantPxH, g.TargetPxH)
			assert.Equal(t, tc.w+2*tc.bleed, g.FinalWidthIn)
			assert.Equal(t, tc.h+2*tc.bleed, g.FinalHeightIn)
		})
	}
}

func TestResolveMatchesFormula(t *testing.T) {
	for _, w := range []float64{1, 2.5, 24, 48, 96.75} {
		for _, bleed := range []float64{0, 0.125, 0.25, 0.5} {
			for _, dpi := range []int{72, 100, 150, 300} {
				g := Resolve(w, w/2, bleed, dpi)
				assert.Equal(t, int(math.Round((w+2*bleed)*float64(dpi))), g.TargetPxW)
				assert.Equal(t, int(math.Round((w/2+2*bleed)*float64(dpi))), g.TargetPxH)
			}
		}
	}
}

func TestResolveDefaultsDPI(t *testing.T) {
	g := Resolve(10, 10, 0, 0)
	assert.Equal(t, DefaultDPI, g.DPI)
	assert.Equal(t, 1500, g.TargetPxW)
	assert.Equal(t, DefaultDPI, ChooseDPI(200, 100))
}

func TestPageSizeInPoints(t *testing.T) {
	g := Resolve(48, 24, 0.125, 150)
	assert.Equal(t, 3474.0, g.PageWidthPt())
	assert.Equal(t, 1746.0, g.PageHeightPt())
	assert.Equal(t, 9.0, g.BleedPt())
	assert.Equal(t, 18.75, g.BleedPx())
	assert.Equal(t, 7200.0, g.BannerPxW())
	assert.Equal(t, 3600.0, g.BannerPxH())
}

func TestWithinBudget(t *testing.T) {
	g := Resolve(48, 24, 0.125, 150)
	assert.Equal(t, int64(7238*3638), g.Pixels())
	assert.True(t, g.WithinBudget())

	huge := Resolve(1200, 1200, 0.125, 1200)
	assert.Equal(t, 1440300, huge.TargetPxW)
	assert.False(t, huge.WithinBudget())

	assert.False(t, Resolve(0.001, 1, 0, 1).WithinBudget(), "empty raster")
}
