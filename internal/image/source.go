package imagepkg

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/geometry"
	"github.com/youruser/bannerprint/internal/logging"
)

// MaxUpscale bounds EnsureResolution.
const MaxUpscale = 4.0

// Source describes the base artwork of a design.
type Source struct {
	Ref
	RotationDeg   float64
	BackgroundHex string
}

// Acquire returns the base artwork for src and the URL it came from. Without
// a reference it synthesizes a solid canvas of the target raster size and
// the URL is empty.
func (f *Fetcher) Acquire(ctx context.Context, src Source, g geometry.Geometry) (image.Image, string, error) {
	if src.IsZero() {
		logging.Info("creating blank canvas", "color", src.BackgroundHex, "width", g.TargetPxW, "height", g.TargetPxH)
		return Background(g.TargetPxW, g.TargetPxH, src.BackgroundHex), "", nil
	}

	u, err := f.URLFor(ctx, src.Ref)
	if err != nil {
		return nil, "", apperr.StageOf(err, apperr.StageAcquire)
	}
	img, err := f.FetchURL(ctx, u, false)
	if err != nil {
		return nil, "", apperr.StageOf(err, apperr.StageAcquire)
	}
	if src.RotationDeg != 0 {
		logging.Info("rotating source image", "degrees", src.RotationDeg)
		img = Rotate(img, src.RotationDeg)
	}
	return img, u, nil
}

// Background is a solid canvas; malformed hex gives white.
func Background(w, h int, hex string) *image.NRGBA {
	return imaging.New(w, h, BackgroundColor(hex))
}

// Rotate turns img clockwise by deg, growing the canvas to fit. Uncovered corners are transparent.
func Rotate(img image.Image, deg float64) *image.NRGBA {
	return imaging.Rotate(img, -deg, color.Transparent)
}

// UpscaleFactor is the uniform factor needed for a srcW×srcH image to cover
// needW×needH, clamped to [1, MaxUpscale].
func UpscaleFactor(srcW, srcH, needW, needH int) float64 {
	if srcW <= 0 || srcH <= 0 {
		return 1
	}
	f := math.Max(float64(needW)/float64(srcW), float64(needH)/float64(srcH))
	return math.Max(1, math.Min(MaxUpscale, f))
}

// EnsureResolution upscales img with a cubic filter when it is smaller than
// needW×needH on either axis. Large enough sources pass through untouched.
func EnsureResolution(img image.Image, needW, needH int) (image.Image, float64) {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw >= needW && sh >= needH {
		return img, 1
	}
	scale := UpscaleFactor(sw, sh, needW, needH)
	if scale == 1 {
		return img, 1
	}
	nw := int(math.Round(float64(sw) * scale))
	nh := int(math.Round(float64(sh) * scale))
	logging.Info("upscaling source image", "scale", scale, "width", nw, "height", nh)
	return imaging.Resize(img, nw, nh, imaging.CatmullRom), scale
}
